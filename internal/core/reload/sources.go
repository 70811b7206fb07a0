package reload

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yndnr/meshtls/internal/infra/tlsroots"
)

// Triggerer accepts reload requests. *Controller implements it.
type Triggerer interface {
	Trigger()
}

// SignalWatcher turns process signals into reload requests. The signals are
// registered when the watcher is created, so none are lost or left to their
// default action before Run starts.
type SignalWatcher struct {
	ch     chan os.Signal
	logger *slog.Logger
}

// NotifySignals registers sigs (SIGHUP if none are given) and returns a
// watcher buffering them until Run.
func NotifySignals(logger *slog.Logger, sigs ...os.Signal) *SignalWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGHUP}
	}

	w := &SignalWatcher{ch: make(chan os.Signal, 1), logger: logger}
	signal.Notify(w.ch, sigs...)
	return w
}

// Run calls t.Trigger for every received signal until ctx is done, then
// unregisters the signals.
func (w *SignalWatcher) Run(ctx context.Context, t Triggerer) {
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-w.ch:
			w.logger.Info("reload requested", "source", "signal", "signal", sig.String())
			t.Trigger()
		}
	}
}

// Stop unregisters the signals. It is safe to call more than once.
func (w *SignalWatcher) Stop() {
	signal.Stop(w.ch)
}

// WatchSignals registers sigs and calls t.Trigger for each of them until ctx
// is done.
func WatchSignals(ctx context.Context, t Triggerer, logger *slog.Logger, sigs ...os.Signal) {
	NotifySignals(logger, sigs...).Run(ctx, t)
}

// PollModTime calls t.Trigger whenever the modification time or size of one
// of paths changes, checking every interval until ctx is done. A file that
// disappears or reappears also counts as a change.
func PollModTime(ctx context.Context, t Triggerer, interval time.Duration, logger *slog.Logger, paths ...string) {
	if interval <= 0 || len(paths) == 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	last := statAll(paths)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := statAll(paths)
			if changed(last, cur) {
				logger.Info("reload requested", "source", "mtime")
				t.Trigger()
			}
			last = cur
		}
	}
}

// WatchFiles calls t.Trigger once the files in paths settle after a change,
// until ctx is done. Directories are watched so atomic renames are seen.
func WatchFiles(ctx context.Context, t Triggerer, debounce time.Duration, logger *slog.Logger, paths ...string) error {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []tlsroots.WatcherOption{tlsroots.WithLogger(logger)}
	if debounce > 0 {
		opts = append(opts, tlsroots.WithDebounce(debounce))
	}

	w, err := tlsroots.NewWatcher(func() {
		logger.Info("reload requested", "source", "file_watch")
		t.Trigger()
	}, paths, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start() }()

	select {
	case <-ctx.Done():
		w.Stop()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statAll(paths []string) []fileStamp {
	out := make([]fileStamp, len(paths))
	for i, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		out[i] = fileStamp{exists: true, modTime: fi.ModTime(), size: fi.Size()}
	}
	return out
}

func changed(a, b []fileStamp) bool {
	for i := range a {
		if a[i].exists != b[i].exists || a[i].size != b[i].size || !a[i].modTime.Equal(b[i].modTime) {
			return true
		}
	}
	return false
}
