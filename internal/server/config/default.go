package config

import "time"

// Default configuration values.
const (
	DefaultPort             = 8080
	DefaultPollInterval     = time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second

	DefaultCertFile      = "/certs/cert.pem"
	DefaultKeyFile       = "/certs/key.pem"
	DefaultCAFile        = "/certs/chain.pem"
	DefaultVerifyDepth   = 2
	DefaultMinVersion    = "1.2"
	DefaultWatchDebounce = 500 * time.Millisecond

	DefaultAdminAddr = "127.0.0.1:9090"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Listener: ListenerSection{
			Port:             DefaultPort,
			PollInterval:     DefaultPollInterval,
			HandshakeTimeout: DefaultHandshakeTimeout,
			ShutdownTimeout:  DefaultShutdownTimeout,
		},
		Credentials: CredentialsSection{
			CertFile:      DefaultCertFile,
			KeyFile:       DefaultKeyFile,
			CAFile:        DefaultCAFile,
			VerifyDepth:   DefaultVerifyDepth,
			MinVersion:    DefaultMinVersion,
			Watch:         true,
			WatchDebounce: DefaultWatchDebounce,
		},
		Admin: AdminSection{
			Addr: DefaultAdminAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
