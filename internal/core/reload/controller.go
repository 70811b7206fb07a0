// Package reload replaces the active credential bundle when asked to.
//
// The Controller owns the only write path to a credential.Slot. Triggers are
// coalesced: however many arrive while an attempt is running, at most one
// more attempt follows it. A failed attempt leaves the slot untouched, so
// the process keeps serving with the last bundle that loaded.
package reload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/meshtls/internal/core/credential"
)

// LoadFunc builds a bundle from the credential files.
type LoadFunc func(credential.Paths) (*credential.Bundle, error)

// Result describes one reload attempt.
type Result struct {
	// Bundle is the newly active bundle, nil on failure.
	Bundle *credential.Bundle
	// Previous is the bundle that was replaced, nil on failure.
	Previous *credential.Bundle
	Err      error
	Reason   credential.Reason
	Duration time.Duration
	At       time.Time
}

// OK reports whether the attempt swapped in a new bundle.
func (r Result) OK() bool {
	return r.Err == nil
}

// Stats summarizes reload activity since start.
type Stats struct {
	Attempts    uint64    `json:"attempts" yaml:"attempts"`
	Successes   uint64    `json:"successes" yaml:"successes"`
	Failures    uint64    `json:"failures" yaml:"failures"`
	LastError   string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastReason  string    `json:"last_reason,omitempty" yaml:"last_reason,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitzero" yaml:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitzero" yaml:"last_success,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithLoadFunc replaces credential.LoadPaths as the bundle builder.
func WithLoadFunc(fn LoadFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.load = fn
		}
	}
}

// WithLoadOptions passes options to the default bundle builder.
func WithLoadOptions(opts ...credential.LoadOption) Option {
	return func(c *Controller) {
		c.loadOpts = append(c.loadOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a function called after every attempt.
func WithObserver(fn func(Result)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// Controller performs credential reloads into a slot.
type Controller struct {
	slot      *credential.Slot
	paths     credential.Paths
	load      LoadFunc
	loadOpts  []credential.LoadOption
	logger    *slog.Logger
	observers []func(Result)

	// pending holds at most one queued trigger.
	pending chan struct{}

	// reloadMu serializes attempts.
	reloadMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// New creates a controller that reloads paths into slot.
func New(slot *credential.Slot, paths credential.Paths, opts ...Option) *Controller {
	c := &Controller{
		slot:    slot,
		paths:   paths,
		logger:  slog.Default(),
		pending: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.load == nil {
		loadOpts := c.loadOpts
		c.load = func(p credential.Paths) (*credential.Bundle, error) {
			return credential.LoadPaths(p, loadOpts...)
		}
	}
	return c
}

// Paths returns the credential files the controller reloads.
func (c *Controller) Paths() credential.Paths {
	return c.paths
}

// Trigger requests a reload. It never blocks; a request made while another
// is already queued is dropped.
func (c *Controller) Trigger() {
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

// Run performs a reload for every queued trigger until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
			_ = c.Reload()
		}
	}
}

// Poll performs a reload if one is queued and reports whether it did. It
// lets a loop that already wakes periodically drive reloads without Run.
func (c *Controller) Poll() bool {
	select {
	case <-c.pending:
		_ = c.Reload()
		return true
	default:
		return false
	}
}

// Reload performs one attempt immediately. On success the new bundle is in
// the slot when Reload returns. On failure the slot is unchanged and the
// returned error is a *credential.LoadError.
func (c *Controller) Reload() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	start := time.Now()
	res := Result{At: start}

	next, err := c.load(c.paths)
	if err == nil {
		res.Previous, err = c.slot.Swap(next)
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err
		res.Reason = credential.ReasonOf(err)
		c.logger.Error("credential reload failed",
			"reason", string(res.Reason),
			"error", err,
			"active_bundle_id", c.slot.Load().ID(),
		)
	} else {
		res.Bundle = next
		c.logger.Info("credentials reloaded",
			"bundle_id", next.ID(),
			"serial", next.Serial(),
			"not_after", next.NotAfter(),
			"previous_bundle_id", res.Previous.ID(),
			"duration", res.Duration,
		)
	}

	c.record(res)
	for _, fn := range c.observers {
		fn(res)
	}
	return res.Err
}

// Stats returns a snapshot of reload activity.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Controller) record(res Result) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.Attempts++
	c.stats.LastAttempt = res.At
	if res.OK() {
		c.stats.Successes++
		c.stats.LastSuccess = res.At
		c.stats.LastError = ""
		c.stats.LastReason = ""
		return
	}
	c.stats.Failures++
	c.stats.LastError = res.Err.Error()
	c.stats.LastReason = string(res.Reason)
}
