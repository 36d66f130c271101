package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Download fetches the image at rawURL, enforcing the size limit and an
// image/* content type. A missing content type is accepted; the bytes are
// decoded later anyway.
func (e *Extractor) Download(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := get(ctx, e.client, rawURL, "image/avif,image/webp,image/*,*/*;q=0.8", e.opts.UserAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	if resp.ContentLength > e.opts.MaxImageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength)
	}

	// Read one byte past the limit to detect oversized bodies.
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.opts.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > e.opts.MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotImage)
	}
	return data, nil
}
