package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ServeMedia serves disk tier images (called manually from router).
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	f, err := h.media.Open(chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
