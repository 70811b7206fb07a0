package config

import "time"

// ServerConfig is the root configuration for meshtls-server.
type ServerConfig struct {
	Listener    ListenerSection    `koanf:"listener" json:"listener" yaml:"listener"`
	Credentials CredentialsSection `koanf:"credentials" json:"credentials" yaml:"credentials"`
	Admin       AdminSection       `koanf:"admin" json:"admin" yaml:"admin"`
	Log         LogSection         `koanf:"log" json:"log" yaml:"log"`
}

// ListenerSection configures the mTLS listener.
type ListenerSection struct {
	// Host is the bind host. Empty binds all interfaces.
	Host string `koanf:"host" json:"host" yaml:"host"`
	Port int    `koanf:"port" json:"port" yaml:"port"`

	// PollInterval bounds how long the accept loop blocks before it
	// rechecks for shutdown.
	PollInterval     time.Duration `koanf:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" json:"handshake_timeout" yaml:"handshake_timeout"`

	// HandshakeRate limits new handshakes per second. Zero disables.
	HandshakeRate  float64 `koanf:"handshake_rate" json:"handshake_rate" yaml:"handshake_rate"`
	HandshakeBurst int     `koanf:"handshake_burst" json:"handshake_burst" yaml:"handshake_burst"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// CredentialsSection configures the credential bundle and how it is reloaded.
type CredentialsSection struct {
	CertFile string `koanf:"cert_file" json:"cert_file" yaml:"cert_file"`
	KeyFile  string `koanf:"key_file" json:"key_file" yaml:"key_file"`
	CAFile   string `koanf:"ca_file" json:"ca_file" yaml:"ca_file"`

	// VerifyDepth is the maximum number of intermediates between a client
	// leaf and a trust anchor.
	VerifyDepth int `koanf:"verify_depth" json:"verify_depth" yaml:"verify_depth"`

	// MinVersion is "1.2" or "1.3".
	MinVersion string `koanf:"min_version" json:"min_version" yaml:"min_version"`

	Watch         bool          `koanf:"watch" json:"watch" yaml:"watch"`
	WatchDebounce time.Duration `koanf:"watch_debounce" json:"watch_debounce" yaml:"watch_debounce"`

	// PollInterval enables modification time polling when positive.
	PollInterval time.Duration `koanf:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
}

// AdminSection configures the admin HTTP listener.
type AdminSection struct {
	// Addr is the listen address. Empty disables the admin listener.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`

	// Allow lists the IPs and CIDRs that may call the admin API. Empty
	// allows everyone who can reach Addr. Health checks are never filtered.
	Allow []string `koanf:"allow" json:"allow,omitempty" yaml:"allow,omitempty"`

	// Socket is a Unix socket path serving the same API. Empty disables it.
	Socket string `koanf:"socket" json:"socket,omitempty" yaml:"socket,omitempty"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
