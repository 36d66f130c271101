package imagecache

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// EncodeOptions bound the stored image.
type EncodeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultEncodeOptions match the screenshot geometry.
var DefaultEncodeOptions = EncodeOptions{MaxWidth: 1200, MaxHeight: 630, Quality: 80}

// ToJPEG decodes data, shrinks it to fit the bounds and re-encodes it as
// JPEG on a white background. Images already inside the bounds keep their
// size.
func ToJPEG(data []byte, opts EncodeOptions) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	if opts.MaxWidth > 0 && opts.MaxHeight > 0 && (b.Dx() > opts.MaxWidth || b.Dy() > opts.MaxHeight) {
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}

	// JPEG has no alpha channel.
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	q := opts.Quality
	if q <= 0 || q > 100 {
		q = DefaultEncodeOptions.Quality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
