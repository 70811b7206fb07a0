package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/meshtls/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Bundles returns the active credential bundle.
	Bundles handler.BundleSource

	// Reloader serves POST /admin/v1/reload and reload stats.
	Reloader handler.Reloader

	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	// Logger for request logging.
	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist for everything except health
	// checks (empty = no restriction).
	AllowList []string

	// EnableAudit enables audit logging for admin requests.
	EnableAudit bool
}

// DefaultRouterConfig returns a RouterConfig with audit logging enabled.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:      slog.Default(),
		EnableAudit: true,
	}
}

// NewRouter creates the admin router.
//
// Health checks skip the allowlist and audit log so load balancer checks stay cheap.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Bundles, cfg.Reloader, cfg.Metrics, log)

	health := Chain(h, RequestID(), Recover(log))

	middlewares := []Middleware{
		RequestID(),
		Recover(log),
		NetworkACL(&NetworkACLConfig{AllowList: cfg.AllowList, Logger: log}),
	}
	if cfg.EnableAudit {
		middlewares = append(middlewares, Audit(log))
	}
	admin := Chain(h, middlewares...)

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", health)
	mux.Handle("GET /readyz", health)
	mux.Handle("/", admin)
	return mux
}
