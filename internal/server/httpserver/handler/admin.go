package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/infra/buildinfo"
)

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Bundle: h.activeSummary(),
		Build:  buildinfo.Get(),
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	}
	if h.reloader != nil {
		resp.Reload = h.reloader.Stats()
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleReload handles POST /admin/v1/reload. With ?wait=true the reload
// runs before the response is written; otherwise it is queued.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, CodeInternalError, "reload is not configured", nil)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		h.reloader.Trigger()
		h.writeJSON(w, r, http.StatusAccepted, ReloadResponse{Queued: true})
		return
	}

	if err := h.reloader.Reload(); err != nil {
		details := ReloadFailure{Reason: string(credential.ReasonOf(err))}
		if s := h.activeSummary(); s != nil {
			details.ActiveBundleID = s.ID
		}
		h.writeError(w, r, http.StatusUnprocessableEntity, CodeReloadFailed, err.Error(), details)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ReloadResponse{Bundle: h.activeSummary()})
}

func (h *Handler) activeSummary() *credential.Summary {
	if h.bundles == nil {
		return nil
	}
	b := h.bundles.Load()
	if b == nil {
		return nil
	}
	s := b.Summarize()
	return &s
}
