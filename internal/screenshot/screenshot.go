// Package screenshot renders a page to an image when no usable image can be
// extracted from its markup.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookmarkd/api/internal/imagecache"
)

// Defaults for a social-card sized viewport.
const (
	DefaultWidth   = 1200
	DefaultHeight  = 630
	DefaultQuality = 80
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrCircuitOpen is returned while a failing backend is being rested.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNoBackend is returned when no backend is available.
	ErrNoBackend = errors.New("no screenshot backend available")
)

// Backend renders url into image bytes.
type Backend interface {
	Name() string
	// Available reports whether the backend can run in this deployment.
	Available() bool
	Capture(ctx context.Context, url string, width, height int) ([]byte, error)
}

// Store is the part of the image cache the service writes to.
type Store interface {
	Store(ctx context.Context, key imagecache.Key, data []byte) (string, error)
	Durable() bool
}

// Options configures a Service.
type Options struct {
	Width   int
	Height  int
	Quality int
	Timeout time.Duration
}

// Result mirrors the preview contract: on success PreviewImage is the
// stored URL.
type Result struct {
	Success      bool   `json:"success"`
	PreviewImage string `json:"previewImage"`
	Backend      string `json:"-"`
}

// Service tries each available backend in order.
type Service struct {
	backends []Backend
	store    Store
	opts     Options
}

// NewService keeps only the backends that report themselves available.
func NewService(store Store, backends []Backend, opts Options) *Service {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var available []Backend
	for _, b := range backends {
		if b == nil {
			continue
		}
		if !b.Available() {
			slog.Info("screenshot backend unavailable", "backend", b.Name())
			continue
		}
		available = append(available, b)
	}
	return &Service{backends: available, store: store, opts: opts}
}

// Available reports whether at least one backend can run.
func (s *Service) Available() bool {
	return len(s.backends) > 0
}

// Backends lists the names of the usable backends.
func (s *Service) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// Size returns the default viewport.
func (s *Service) Size() (int, int) {
	return s.opts.Width, s.opts.Height
}

// Capture screenshots url and stores it under the url's preview key. A zero
// width or height uses the defaults.
func (s *Service) Capture(ctx context.Context, url string, width, height int) (Result, error) {
	if !s.store.Durable() {
		return Result{}, imagecache.ErrNoDurableStorage
	}
	if len(s.backends) == 0 {
		return Result{}, ErrNoBackend
	}
	if width <= 0 {
		width = s.opts.Width
	}
	if height <= 0 {
		height = s.opts.Height
	}

	var errs []error
	for _, b := range s.backends {
		data, err := s.captureOne(ctx, b, url, width, height)
		if err != nil {
			slog.Warn("screenshot failed", "backend", b.Name(), "url", url, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		stored, err := s.store.Store(ctx, imagecache.KeyForURL(url), data)
		if err != nil {
			return Result{}, fmt.Errorf("storing screenshot: %w", err)
		}
		return Result{Success: true, PreviewImage: stored, Backend: b.Name()}, nil
	}
	return Result{}, errors.Join(errs...)
}

func (s *Service) captureOne(ctx context.Context, b Backend, url string, width, height int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, err := b.Capture(ctx, url, width, height)
	if err != nil {
		return nil, err
	}
	return imagecache.ToJPEG(raw, imagecache.EncodeOptions{MaxWidth: width, MaxHeight: height, Quality: s.opts.Quality})
}
