package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/bookmarkd/api/internal/imagecache"
	"github.com/bookmarkd/api/internal/preview"
)

const maxRequestBody = 64 << 10 // 64 KB

// GeneratePreview handles POST /api/preview/generate.
func (h *Handler) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	var req preview.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid request body")
		return
	}
	h.resolve(w, r, req)
}

// GetPreview handles GET /api/preview?url=&title=.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.resolve(w, r, preview.Request{URL: q.Get("url"), KnownTitle: q.Get("title")})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, req preview.Request) {
	req.URL = strings.TrimSpace(req.URL)
	req.KnownTitle = strings.TrimSpace(req.KnownTitle)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "url is required")
		return
	}
	if !validTarget(req.URL) {
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "url must be an http or https URL")
		return
	}

	writeJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), req))
}

func validTarget(raw string) bool {
	u, err := url.Parse(imagecache.NormalizeURL(raw))
	if err != nil || u.Hostname() == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
