package credential

import "sync/atomic"

// Slot holds the bundle offered to new handshakes.
//
// Readers call Load and get the last committed bundle; they never block and
// never see a partial value. There is one writer, the reload controller,
// which replaces the whole bundle with Swap. Bundles already handed out stay
// valid after a swap.
type Slot struct {
	current atomic.Pointer[Bundle]
}

// NewSlot creates a slot holding initial.
func NewSlot(initial *Bundle) (*Slot, error) {
	if initial == nil {
		return nil, ErrNilBundle
	}
	s := &Slot{}
	s.current.Store(initial)
	return s, nil
}

// Load returns the active bundle.
func (s *Slot) Load() *Bundle {
	return s.current.Load()
}

// Swap makes next the active bundle and returns the one it replaced.
func (s *Slot) Swap(next *Bundle) (*Bundle, error) {
	if next == nil {
		return nil, ErrNilBundle
	}
	return s.current.Swap(next), nil
}
