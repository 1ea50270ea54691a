package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// AdminStatsHandler returns the aggregate numbers for the dashboard.
func (h *Handler) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetAdminStats(r.Context())
	if err != nil {
		h.Log.Error("loading admin stats failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	h.writeData(w, stats)
}

// RecentSyncsHandler lists the latest sync runs for the health view.
func (h *Handler) RecentSyncsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	runs, err := h.Store.GetRecentSyncRuns(r.Context(), limit)
	if err != nil {
		h.Log.Error("loading sync runs failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load sync history")
		return
	}
	h.writeData(w, runs)
}
