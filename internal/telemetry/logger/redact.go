package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted. Path-like keys such as
// key_file are not matched.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"private_key",
	"privatekey",
	"bearer",
	"authorization",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if IsSensitiveValue(strVal) {
			return slog.String(a.Key, redactedValue)
		}

		// If key name suggests sensitive data and value is non-empty, fully redact
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactString replaces value with the redaction placeholder if it holds
// private key material.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return redactedValue
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value contains a PEM private key block.
func IsSensitiveValue(value string) bool {
	const begin = "-----BEGIN "
	for {
		i := strings.Index(value, begin)
		if i < 0 {
			return false
		}
		value = value[i+len(begin):]
		end := strings.Index(value, "-----")
		if end < 0 {
			return false
		}
		if strings.HasSuffix(value[:end], "PRIVATE KEY") {
			return true
		}
		value = value[end:]
	}
}
