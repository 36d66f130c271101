// Package swatch derives a deterministic color preview for a URL. It is the
// last link of the preview chain and cannot fail.
package swatch

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
)

// ColorPreview is the image-free visual used when no preview image exists.
type ColorPreview struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	AccentColor     string `json:"accentColor"`
	Domain          string `json:"domain"`
}

// luminanceThreshold splits dark and light backgrounds.
const luminanceThreshold = 128

// Generate returns the color preview for rawURL. The same URL always yields
// the same colors. A non-empty title is used as the display label.
func Generate(rawURL, title string) ColorPreview {
	sum := md5.Sum([]byte(rawURL))
	r, g, b := sum[0], sum[1], sum[2]

	text := "#ffffff"
	if Luminance(r, g, b) >= luminanceThreshold {
		text = "#000000"
	}

	return ColorPreview{
		BackgroundColor: hexColor(r, g, b),
		TextColor:       text,
		AccentColor:     hexColor(g, b, r),
		Domain:          Label(rawURL, title),
	}
}

// Luminance is the perceptual brightness of an RGB triplet in [0, 255].
func Luminance(r, g, b byte) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Label picks the display text: title, else hostname, else the URL without
// its scheme.
func Label(rawURL, title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if i := strings.Index(rawURL, "://"); i >= 0 {
		return rawURL[i+3:]
	}
	return rawURL
}

func hexColor(r, g, b byte) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
