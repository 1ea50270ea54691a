package handlers

import (
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendersync/db"
	"tendersync/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from the query, with defaults
// and caps.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// GetTendersHandler lists tenders filtered by search text, province, industry
// and open state.
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	q := r.URL.Query()

	filter := db.TenderFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Province: strings.TrimSpace(q.Get("province")),
		Industry: strings.TrimSpace(q.Get("industry")),
		OpenOnly: q.Get("open") == "true",
		Limit:    params.Limit,
		Offset:   params.Offset,
	}

	tenders, err := h.Store.GetTenders(r.Context(), filter)
	if err != nil {
		h.Log.Error("listing tenders failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get tenders")
		return
	}
	h.writeData(w, tenders)
}

// GetTenderHandler returns one tender with its full raw payload for the
// detail page.
func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	ocid := strings.TrimSpace(chi.URLParam(r, "ocid"))
	if ocid == "" {
		h.writeError(w, http.StatusBadRequest, "missing ocid")
		return
	}

	tender, err := h.Store.GetTender(r.Context(), ocid)
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(w, http.StatusNotFound, "tender not found")
		return
	}
	if err != nil {
		h.Log.Error("loading tender failed", zap.String("ocid", ocid), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get tender")
		return
	}
	h.writeData(w, tender)
}

// TrackViewHandler bumps the view counter for a tender, deduplicating rapid
// repeats from the same viewer signal. An invalid reference is a no-op
// success-false response, not an error.
func (h *Handler) TrackViewHandler(w http.ResponseWriter, r *http.Request) {
	ocid := strings.TrimSpace(chi.URLParam(r, "ocid"))
	if ocid == "" {
		h.writeData(w, models.ViewResult{Success: false})
		return
	}

	ip := clientIP(r)
	userAgent := r.UserAgent()
	userID := strings.TrimSpace(r.URL.Query().Get("username"))
	viewerHash := db.ViewerHash(ip, userAgent, userID)

	count, counted, err := h.Store.RecordView(r.Context(), ocid, viewerHash, h.ViewDedupWindow)
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(w, http.StatusNotFound, "tender not found")
		return
	}
	if err != nil {
		h.Log.Error("recording view failed", zap.String("ocid", ocid), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to record view")
		return
	}
	h.writeData(w, models.ViewResult{Success: true, ViewCount: count, Counted: counted})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
