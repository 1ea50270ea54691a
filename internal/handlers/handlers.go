package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tendersync/models"
)

// SyncRunner triggers one sync invocation. Hard failures come back inside
// the response, never as a panic or error.
type SyncRunner interface {
	RunOnce(ctx context.Context) *models.SyncResponse
}

// DocumentFetcher downloads a tender document with the client's retry policy.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, docURL string) (*http.Response, error)
}

// Handler wires the HTTP surface to the store and the sync pipeline.
type Handler struct {
	Store           StorageInterface
	Sync            SyncRunner
	Docs            DocumentFetcher
	Log             *zap.Logger
	ViewDedupWindow time.Duration
}

func NewHandler(store StorageInterface, sync SyncRunner, docs DocumentFetcher, viewDedupWindow time.Duration, log *zap.Logger) *Handler {
	return &Handler{
		Store:           store,
		Sync:            sync,
		Docs:            docs,
		Log:             log,
		ViewDedupWindow: viewDedupWindow,
	}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("encoding response failed", zap.Error(err))
	}
}

// writeData wraps successful auxiliary results in the {data, error} envelope.
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, models.APIResponse{Data: data})
}

// writeError reports an expected failure (validation, auth, not-found) as a
// structured error object so callers can branch on it.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, models.APIResponse{Error: &models.APIError{Message: message}})
}
