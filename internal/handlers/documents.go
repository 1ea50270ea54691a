package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

var formatContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"zip":  "application/zip",
	"csv":  "text/csv",
}

// DocumentProxyHandler streams a tender document through the server so the
// browser is not blocked by the upstream host. When the fetch ultimately
// fails the original URL is returned as a fallback.
func (h *Handler) DocumentProxyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docURL := strings.TrimSpace(q.Get("url"))
	title := strings.TrimSpace(q.Get("title"))
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))

	parsed, err := url.Parse(docURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		h.writeError(w, http.StatusBadRequest, "invalid document url")
		return
	}

	resp, err := h.Docs.FetchDocument(r.Context(), docURL)
	if err != nil {
		h.Log.Warn("document proxy fetch failed", zap.String("url", docURL), zap.Error(err))
		h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"data":  map[string]string{"fallbackUrl": docURL},
			"error": map[string]string{"message": "document download failed, use the original link"},
		})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if ct, ok := formatContentTypes[format]; ok {
		contentType = ct
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	filename := title
	if filename == "" {
		filename = "document"
	}
	if format != "" && !strings.HasSuffix(strings.ToLower(filename), "."+format) {
		filename += "." + format
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.Log.Warn("document stream interrupted", zap.String("url", docURL), zap.Error(err))
	}
}
