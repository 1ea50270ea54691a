package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendersync/models"
)

// requireUser extracts the authenticated user identity. Bookmarks change
// user-visible behavior when unauthenticated (the UI must prompt sign-in),
// so a missing identity is a distinct, reported error rather than a no-op.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required to manage bookmarks")
		return "", false
	}
	return username, true
}

// AddBookmarkHandler handles POST /api/bookmarks. Adding an existing
// bookmark is reported as success, not a conflict.
func (h *Handler) AddBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var input struct {
		OCID string `json:"ocid"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	input.OCID = strings.TrimSpace(input.OCID)
	if input.OCID == "" {
		h.writeError(w, http.StatusBadRequest, "ocid is required")
		return
	}

	created, err := h.Store.AddBookmark(r.Context(), username, input.OCID)
	if err != nil {
		h.Log.Error("adding bookmark failed",
			zap.String("user", username), zap.String("ocid", input.OCID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "connection issue, please try again")
		return
	}

	result := models.BookmarkResult{Success: true, Bookmarked: true}
	if !created {
		result.Message = "already bookmarked"
	}
	h.writeData(w, result)
}

// RemoveBookmarkHandler handles DELETE /api/bookmarks/{ocid}. Removing an
// absent bookmark succeeds.
func (h *Handler) RemoveBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ocid := strings.TrimSpace(chi.URLParam(r, "ocid"))
	if ocid == "" {
		h.writeError(w, http.StatusBadRequest, "missing ocid")
		return
	}

	if err := h.Store.RemoveBookmark(r.Context(), username, ocid); err != nil {
		h.Log.Error("removing bookmark failed",
			zap.String("user", username), zap.String("ocid", ocid), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "connection issue, please try again")
		return
	}
	h.writeData(w, models.BookmarkResult{Success: true, Bookmarked: false})
}

// GetBookmarkHandler reports whether the user bookmarked a tender.
func (h *Handler) GetBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ocid := strings.TrimSpace(chi.URLParam(r, "ocid"))
	if ocid == "" {
		h.writeError(w, http.StatusBadRequest, "missing ocid")
		return
	}

	bookmarked, err := h.Store.HasBookmark(r.Context(), username, ocid)
	if err != nil {
		h.Log.Error("checking bookmark failed",
			zap.String("user", username), zap.String("ocid", ocid), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "connection issue, please try again")
		return
	}
	h.writeData(w, models.BookmarkResult{Success: true, Bookmarked: bookmarked})
}

// ListBookmarksHandler returns the user's bookmarked tenders, paginated.
func (h *Handler) ListBookmarksHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	params := parsePaginationParams(r)
	tenders, err := h.Store.ListBookmarks(r.Context(), username, params.Limit, params.Offset)
	if err != nil {
		h.Log.Error("listing bookmarks failed", zap.String("user", username), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	h.writeData(w, tenders)
}
