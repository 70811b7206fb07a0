package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// handleGetLogLevel handles GET /admin/v1/log-level.
func (h *Handler) handleGetLogLevel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, LogLevel{Level: logger.GetLevel()})
}

// handleSetLogLevel handles PUT /admin/v1/log-level. The change is not
// persisted; a restart goes back to log.level.
func (h *Handler) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req LogLevel
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil || req.Level == "" {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, `body must be {"level": "debug|info|warn|error"}`, nil)
		return
	}

	prev := logger.GetLevel()
	if err := logger.SetLevel(req.Level); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}

	level := logger.GetLevel()
	h.logger.Info("log level changed", "from", prev, "to", level)
	h.writeJSON(w, r, http.StatusOK, LogLevel{Level: level})
}
