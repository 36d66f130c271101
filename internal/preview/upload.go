package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/bookmarkd/api/internal/imagecache"
)

// DefaultMaxUploadSize bounds user-supplied preview images.
const DefaultMaxUploadSize = 5 << 20 // 5 MB

var (
	ErrEmptyUpload     = errors.New("no image data")
	ErrUploadTooLarge  = errors.New("image exceeds upload limit")
	ErrUnsupportedType = errors.New("only image uploads are allowed")
)

// UploadResult reports where an uploaded image was stored.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"previewImage"`
}

// UploadImage stores a user-supplied image under the uploads namespace,
// keyed by its bytes. An empty contentType is sniffed from data.
func (r *Resolver) UploadImage(ctx context.Context, data []byte, contentType string) (UploadResult, error) {
	if len(data) == 0 {
		return UploadResult{}, ErrEmptyUpload
	}
	if int64(len(data)) > r.deps.MaxUploadSize {
		return UploadResult{}, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(data))
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return UploadResult{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	if r.deps.Cache == nil || !r.deps.Cache.Durable() {
		return UploadResult{}, imagecache.ErrNoDurableStorage
	}

	jpg, err := imagecache.ToJPEG(data, r.deps.Encode)
	if err != nil {
		return UploadResult{}, err
	}

	key := imagecache.KeyForBytes(imagecache.NamespaceUploads, data)
	stored, err := r.deps.Cache.Store(ctx, key, jpg)
	if err != nil {
		return UploadResult{}, err
	}

	r.metrics.recordUpload(ctx)
	slog.Info("preview image uploaded", "key", key.String(), "size", len(data))
	return UploadResult{Success: true, URL: stored}, nil
}
