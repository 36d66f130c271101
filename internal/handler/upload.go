package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bookmarkd/api/internal/imagecache"
	"github.com/bookmarkd/api/internal/preview"
)

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Success      bool   `json:"success"`
	PreviewImage string `json:"previewImage"`
	Message      string `json:"message"`
}

// UploadPreview handles POST /api/preview/upload with a multipart "image"
// field.
func (h *Handler) UploadPreview(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "No image provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "Could not read image")
		return
	}

	res, err := h.resolver.UploadImage(r.Context(), data, header.Header.Get("Content-Type"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, UploadResponse{Success: true, PreviewImage: res.URL, Message: "Image uploaded"})
	case errors.Is(err, preview.ErrUploadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Image is too large")
	case errors.Is(err, preview.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "Only image files are allowed")
	case errors.Is(err, preview.ErrEmptyUpload), errors.Is(err, imagecache.ErrNotImage):
		writeError(w, http.StatusBadRequest, ErrCodeValidationError, "File is not a readable image")
	case errors.Is(err, imagecache.ErrNoDurableStorage):
		writeError(w, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "No image storage is configured")
	default:
		slog.Error("storing uploaded image", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred")
	}
}
