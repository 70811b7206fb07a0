package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/core/reload"
	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// Error codes carried in X-Error-Code and the response envelope.
const (
	CodeBadRequest    = "MT-ADMIN-4000"
	CodeReloadFailed  = "MT-RELOAD-5000"
	CodeNoBundle      = "MT-CRED-5030"
	CodeInternalError = "MT-SYS-5000"
)

// BundleSource returns the active credential bundle.
type BundleSource interface {
	Load() *credential.Bundle
}

// Reloader is the part of *reload.Controller the admin API drives.
type Reloader interface {
	Trigger()
	Reload() error
	Stats() reload.Stats
}

// Handler serves the admin API.
type Handler struct {
	bundles  BundleSource
	reloader Reloader
	metrics  http.Handler
	logger   *slog.Logger
	started  time.Time
	mux      *http.ServeMux
}

// New creates a Handler. metrics may be nil, in which case /metrics is not
// served.
func New(bundles BundleSource, reloader Reloader, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		bundles:  bundles,
		reloader: reloader,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)

	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	h.mux.HandleFunc("GET /admin/v1/status", h.handleStatus)
	h.mux.HandleFunc("POST /admin/v1/reload", h.handleReload)
	h.mux.HandleFunc("GET /admin/v1/log-level", h.handleGetLogLevel)
	h.mux.HandleFunc("PUT /admin/v1/log-level", h.handleSetLogLevel)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.writeRaw(w, r, status, NewResponse(getRequestID(r), data))
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	w.Header().Set("X-Error-Code", code)
	h.writeRaw(w, r, status, NewErrorResponse(getRequestID(r), code, message, details))
}

func (h *Handler) writeRaw(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	if id := getRequestID(r); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// getRequestID returns the request ID set by the RequestID middleware, or
// the caller's header when the middleware is not installed.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
