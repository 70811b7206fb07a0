package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// ErrInvalid is wrapped by every error Verify returns.
var ErrInvalid = errors.New("config: invalid configuration")

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	var errs []error
	errs = append(errs, verifyListener(&cfg.Listener)...)
	errs = append(errs, verifyCredentials(&cfg.Credentials)...)
	errs = append(errs, verifyAdmin(&cfg.Admin)...)
	errs = append(errs, verifyLog(&cfg.Log)...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func verifyListener(cfg *ListenerSection) []error {
	var errs []error
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("listener.port %d out of range", cfg.Port))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, errors.New("listener.poll_interval must be positive"))
	}
	if cfg.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("listener.handshake_timeout must be positive"))
	}
	if cfg.HandshakeRate < 0 {
		errs = append(errs, errors.New("listener.handshake_rate must not be negative"))
	}
	if cfg.HandshakeRate > 0 && cfg.HandshakeBurst < 1 {
		errs = append(errs, errors.New("listener.handshake_burst must be at least 1 when handshake_rate is set"))
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("listener.shutdown_timeout must not be negative"))
	}
	return errs
}

func verifyCredentials(cfg *CredentialsSection) []error {
	var errs []error
	if cfg.CertFile == "" {
		errs = append(errs, errors.New("credentials.cert_file is required"))
	}
	if cfg.KeyFile == "" {
		errs = append(errs, errors.New("credentials.key_file is required"))
	}
	if cfg.CAFile == "" {
		errs = append(errs, errors.New("credentials.ca_file is required"))
	}
	if cfg.VerifyDepth < 0 {
		errs = append(errs, errors.New("credentials.verify_depth must not be negative"))
	}
	if _, err := ParseTLSVersion(cfg.MinVersion); err != nil {
		errs = append(errs, err)
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, errors.New("credentials.watch_debounce must not be negative"))
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, errors.New("credentials.poll_interval must not be negative"))
	}
	return errs
}

// maxSocketPath is the portable limit on sun_path.
const maxSocketPath = 104

func verifyAdmin(cfg *AdminSection) []error {
	var errs []error
	if cfg.Socket != "" {
		if !filepath.IsAbs(cfg.Socket) {
			errs = append(errs, fmt.Errorf("admin.socket %q must be an absolute path", cfg.Socket))
		}
		if len(cfg.Socket) > maxSocketPath {
			errs = append(errs, fmt.Errorf("admin.socket is longer than %d bytes", maxSocketPath))
		}
	}
	if cfg.Addr == "" {
		return errs
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		errs = append(errs, fmt.Errorf("admin.addr %q: %w", cfg.Addr, err))
	}
	for _, entry := range cfg.Allow {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				errs = append(errs, fmt.Errorf("admin.allow %q: %w", entry, err))
			}
		} else if net.ParseIP(entry) == nil {
			errs = append(errs, fmt.Errorf("admin.allow %q is not an IP or CIDR", entry))
		}
	}
	return errs
}

func verifyLog(cfg *LogSection) []error {
	var errs []error
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", cfg.Format))
	}
	return errs
}

// ParseTLSVersion maps "1.2" and "1.3" to their crypto/tls constants.
func ParseTLSVersion(v string) (uint16, error) {
	switch strings.TrimPrefix(strings.ToLower(v), "tls") {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("credentials.min_version %q is not 1.2 or 1.3", v)
	}
}

// Addr returns the listener address in host:port form.
func (l ListenerSection) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// Paths returns the credential file locations.
func (c CredentialsSection) Paths() credential.Paths {
	return credential.Paths{CertFile: c.CertFile, KeyFile: c.KeyFile, CAFile: c.CAFile}
}

// LoadOptions converts the section into credential loader options.
func (c CredentialsSection) LoadOptions() []credential.LoadOption {
	opts := []credential.LoadOption{credential.WithVerifyDepth(c.VerifyDepth)}
	if v, err := ParseTLSVersion(c.MinVersion); err == nil {
		opts = append(opts, credential.WithMinVersion(v))
	}
	return opts
}
