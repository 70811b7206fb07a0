package handler

import "net/http"

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeRaw(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz. The process is ready once a bundle is
// active.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.bundles == nil || h.bundles.Load() == nil {
		h.writeRaw(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	h.writeRaw(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
