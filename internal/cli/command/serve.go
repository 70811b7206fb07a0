package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/core/reload"
	"github.com/yndnr/meshtls/internal/infra/buildinfo"
	"github.com/yndnr/meshtls/internal/infra/shutdown"
	"github.com/yndnr/meshtls/internal/server/config"
	"github.com/yndnr/meshtls/internal/server/httpserver"
	"github.com/yndnr/meshtls/internal/server/localserver"
	"github.com/yndnr/meshtls/internal/server/mtlsserver"
	"github.com/yndnr/meshtls/internal/telemetry/metric"
)

// ServeCommand returns the serve command.
func ServeCommand(handler mtlsserver.Handler) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the mTLS listener",
		Action: serveAction(handler),
	}
}

func serveAction(handler mtlsserver.Handler) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := initLogger(cfg, errWriter(c))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		log.Info("starting meshtls-server",
			"version", buildinfo.Version,
			"commit", buildinfo.Commit,
			"config", c.String("config"))

		return Serve(c.Context, cfg, handler, log.Slog())
	}
}

// ServeOption configures Serve.
type ServeOption func(*serveOptions)

type serveOptions struct {
	ready func(listener, admin net.Addr)
}

// WithReady registers fn to be called once both listeners are bound. admin is
// nil when the admin listener is disabled.
func WithReady(fn func(listener, admin net.Addr)) ServeOption {
	return func(o *serveOptions) {
		o.ready = fn
	}
}

// Serve loads the credentials, starts the mTLS listener, the reload sources
// and the admin listener, and blocks until a shutdown signal arrives, ctx is
// done or the listener fails. A credential load failure here is fatal.
func Serve(ctx context.Context, cfg *config.ServerConfig, handler mtlsserver.Handler, log *slog.Logger, opts ...ServeOption) error {
	var so serveOptions
	for _, opt := range opts {
		opt(&so)
	}
	if log == nil {
		log = slog.Default()
	}

	paths := cfg.Credentials.Paths()
	bundle, err := credential.LoadPaths(paths, cfg.Credentials.LoadOptions()...)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	slot, err := credential.NewSlot(bundle)
	if err != nil {
		return err
	}
	log.Info("credentials loaded",
		"bundle_id", bundle.ID(),
		"subject", bundle.Leaf().Subject.String(),
		"not_after", bundle.NotAfter(),
		"trust_anchors", bundle.AnchorCount())

	registry := metric.NewRegistry()
	registry.MustRegister(metric.NewBundleCollector(slot))

	ctrl := reload.New(slot, paths,
		reload.WithLoadOptions(cfg.Credentials.LoadOptions()...),
		reload.WithLogger(log),
		reload.WithObserver(func(r reload.Result) { registry.ReloadObserved(r.OK()) }),
	)

	srv := mtlsserver.New(&mtlsserver.Config{
		Addr:             cfg.Listener.Addr(),
		PollInterval:     cfg.Listener.PollInterval,
		HandshakeTimeout: cfg.Listener.HandshakeTimeout,
		HandshakeRate:    cfg.Listener.HandshakeRate,
		HandshakeBurst:   cfg.Listener.HandshakeBurst,
	}, slot, handler, mtlsserver.WithLogger(log), mtlsserver.WithMetrics(registry))

	ln, err := net.Listen("tcp", cfg.Listener.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listener.Addr(), err)
	}

	var admin *httpserver.Server
	var adminAddr net.Addr
	if cfg.Admin.Addr != "" {
		admin = httpserver.New(cfg.Admin.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Bundles:     slot,
			Reloader:    ctrl,
			Metrics:     registry.Handler(),
			Logger:      log,
			AllowList:   cfg.Admin.Allow,
			EnableAudit: true,
		}))
		if adminAddr, err = admin.Listen(); err != nil {
			ln.Close()
			return fmt.Errorf("admin listen: %w", err)
		}
	}

	// The socket is guarded by file permissions, not the IP allowlist.
	var local *localserver.Server
	if cfg.Admin.Socket != "" {
		local = localserver.New(cfg.Admin.Socket, httpserver.NewRouter(&httpserver.RouterConfig{
			Bundles:     slot,
			Reloader:    ctrl,
			Metrics:     registry.Handler(),
			Logger:      log,
			EnableAudit: true,
		}))
		if err := local.Listen(); err != nil {
			ln.Close()
			if admin != nil {
				admin.Shutdown(context.Background())
			}
			return fmt.Errorf("admin socket: %w", err)
		}
	}

	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	// Reload sources stop with bgCtx, after the listeners have drained.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// Registered here so a SIGHUP right after startup never hits the
	// default action.
	hup := reload.NotifySignals(log)
	spawn(func() { ctrl.Run(bgCtx) })
	spawn(func() { hup.Run(bgCtx, ctrl) })
	if cfg.Credentials.Watch {
		spawn(func() {
			err := reload.WatchFiles(bgCtx, ctrl, cfg.Credentials.WatchDebounce, log,
				paths.CertFile, paths.KeyFile, paths.CAFile)
			if err != nil {
				log.Warn("credential file watch disabled", "error", err)
			}
		})
	}
	if cfg.Credentials.PollInterval > 0 {
		spawn(func() {
			reload.PollModTime(bgCtx, ctrl, cfg.Credentials.PollInterval, log,
				paths.CertFile, paths.KeyFile, paths.CAFile)
		})
	}

	sh := shutdown.NewHandler(cfg.Listener.ShutdownTimeout, shutdown.WithLogger(log))

	// Hooks run newest first.
	sh.OnShutdown("reload sources", func(context.Context) error {
		stopBackground()
		wg.Wait()
		return nil
	})
	sh.OnShutdown("mtls listener", srv.Shutdown)
	if admin != nil {
		sh.OnShutdown("admin listener", admin.Shutdown)
	}
	if local != nil {
		sh.OnShutdown("admin socket", local.Shutdown)
	}

	spawn(func() {
		if err := srv.Serve(runCtx, ln); err != nil && !errors.Is(err, mtlsserver.ErrServerClosed) {
			stop(fmt.Errorf("mtls listener: %w", err))
		}
	})
	if admin != nil {
		go func() {
			if err := admin.Serve(); err != nil {
				stop(fmt.Errorf("admin listener: %w", err))
			}
		}()
		log.Info("admin listener started", "addr", adminAddr.String())
	}
	if local != nil {
		go func() {
			if err := local.Serve(); err != nil {
				stop(fmt.Errorf("admin socket: %w", err))
			}
		}()
		log.Info("admin socket started", "path", local.Path())
	}
	log.Info("mtls listener started", "addr", ln.Addr().String())

	if so.ready != nil {
		so.ready(ln.Addr(), adminAddr)
	}

	err = sh.Wait(runCtx)
	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
