package handlers

import (
	"net/http"
)

// SyncHandler handles POST /api/sync: one orchestrator invocation. The body
// is ignored; the mode is decided by the pipeline itself. The response always
// carries the run statistics, zeroed on hard failure.
func (h *Handler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	resp := h.Sync.RunOnce(r.Context())

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, resp)
}
