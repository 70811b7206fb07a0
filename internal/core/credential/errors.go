package credential

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialLoad matches every *LoadError through errors.Is.
	ErrCredentialLoad = errors.New("credential: load failed")

	// ErrNilBundle is returned when a nil bundle is offered to a Slot.
	ErrNilBundle = errors.New("credential: nil bundle")

	// ErrChainTooDeep is returned by the handshake when every verified peer
	// chain exceeds the bundle's verification depth.
	ErrChainTooDeep = errors.New("credential: peer chain exceeds verification depth")

	// ErrNoVerifiedChain is returned by the handshake when the TLS stack
	// produced no verified chain for the peer.
	ErrNoVerifiedChain = errors.New("credential: peer certificate not verified")
)

// Reason tags why a credential load failed.
type Reason string

const (
	// ReasonUnreadable means a file could not be read.
	ReasonUnreadable Reason = "unreadable"
	// ReasonMalformedPEM means a file held no usable PEM block or the block
	// did not parse.
	ReasonMalformedPEM Reason = "malformed_pem"
	// ReasonKeyMismatch means the private key does not belong to the
	// certificate.
	ReasonKeyMismatch Reason = "key_mismatch"
	// ReasonEmptyTrust means the CA file held no certificate.
	ReasonEmptyTrust Reason = "empty_trust"
)

// LoadError describes a failed credential load.
type LoadError struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("credential: %s: %s: %v", e.Reason, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports ErrCredentialLoad as a match so callers need not know the type.
func (e *LoadError) Is(target error) bool {
	return target == ErrCredentialLoad
}

// ReasonOf returns the reason tag carried by err, or "" if err is not a
// credential load error.
func ReasonOf(err error) Reason {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Reason
	}
	return ""
}

func loadErr(reason Reason, path string, err error) error {
	return &LoadError{Reason: reason, Path: path, Err: err}
}
