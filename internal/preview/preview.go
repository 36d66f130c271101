// Package preview resolves a URL to a preview image, falling back through
// cached, extracted and screenshotted images to a generated color swatch.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/bookmarkd/api/internal/extract"
	"github.com/bookmarkd/api/internal/imagecache"
	"github.com/bookmarkd/api/internal/pagemeta"
	"github.com/bookmarkd/api/internal/screenshot"
	"github.com/bookmarkd/api/internal/swatch"
)

const instrumentationName = "github.com/bookmarkd/api/internal/preview"

// StrategySwatch names the terminal fallback in metrics and logs.
const StrategySwatch = "swatch"

// DefaultResolveTimeout bounds a shared resolution once it no longer follows
// the context of the caller that started it.
const DefaultResolveTimeout = 90 * time.Second

// Request asks for a preview of URL. KnownTitle, when set, is returned as
// the page title instead of anything learned from the page.
type Request struct {
	URL        string `json:"url"`
	KnownTitle string `json:"title,omitempty"`
}

// Result is the resolved preview. ColorPreview is set only when
// PreviewImage is empty.
type Result struct {
	PreviewImage string               `json:"previewImage"`
	PageTitle    string               `json:"pageTitle"`
	ColorPreview *swatch.ColorPreview `json:"colorPreview,omitempty"`
}

// Cache is the image cache the resolver reads and writes.
type Cache interface {
	Lookup(ctx context.Context, key imagecache.Key) (*imagecache.CachedImage, error)
	Store(ctx context.Context, key imagecache.Key, data []byte) (string, error)
	Durable() bool
}

// PageFetcher fetches pages, titles and images from the origin.
type PageFetcher interface {
	Extract(ctx context.Context, url string) (*extract.Page, error)
	FetchTitle(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Screenshotter renders and stores a page image.
type Screenshotter interface {
	Available() bool
	Capture(ctx context.Context, url string, width, height int) (screenshot.Result, error)
}

// MetaStore remembers page titles for cached images.
type MetaStore interface {
	Get(ctx context.Context, key string) (*pagemeta.Record, error)
	Save(ctx context.Context, rec *pagemeta.Record) error
}

// Deps are the collaborators a Resolver is built from. Any of them may be
// nil; strategies that need a missing collaborator are dropped.
type Deps struct {
	Cache       Cache
	Fetcher     PageFetcher
	Screenshots Screenshotter
	Meta        MetaStore
	Overrides   Overrides
	Encode      imagecache.EncodeOptions
	// MaxUploadSize bounds UploadImage. Zero means DefaultMaxUploadSize.
	MaxUploadSize int64
	// ResolveTimeout bounds the shared chain. Zero means DefaultResolveTimeout.
	ResolveTimeout time.Duration
}

// Resolver runs the fallback chain. It is safe for concurrent use.
type Resolver struct {
	strategies []Strategy
	deps       Deps
	flight     singleflight.Group
	tracer     trace.Tracer
	metrics    *metrics
}

// New builds a Resolver, keeping only the strategies available in this
// deployment.
func New(deps Deps) *Resolver {
	if deps.Encode == (imagecache.EncodeOptions{}) {
		deps.Encode = imagecache.DefaultEncodeOptions
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = DefaultMaxUploadSize
	}
	if deps.ResolveTimeout <= 0 {
		deps.ResolveTimeout = DefaultResolveTimeout
	}

	r := &Resolver{
		deps:    deps,
		tracer:  otel.Tracer(instrumentationName),
		metrics: newMetrics(),
	}

	all := []Strategy{
		&cacheStrategy{cache: deps.Cache, fetcher: deps.Fetcher, meta: deps.Meta, overrides: deps.Overrides},
		&extractStrategy{cache: deps.Cache, fetcher: deps.Fetcher, meta: deps.Meta, overrides: deps.Overrides, encode: deps.Encode},
		&screenshotStrategy{shots: deps.Screenshots, meta: deps.Meta},
	}
	for _, s := range all {
		if !s.Available() {
			slog.Info("preview strategy unavailable", "strategy", s.Name())
			continue
		}
		r.strategies = append(r.strategies, s)
	}
	return r
}

// Strategies lists the strategies in the order they are tried.
func (r *Resolver) Strategies() []string {
	names := make([]string, 0, len(r.strategies)+1)
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return append(names, StrategySwatch)
}

// outcome is the shared part of a resolution, before per-caller titles.
type outcome struct {
	image    string
	title    string
	strategy string
}

// Resolve never fails. Every problem along the chain downgrades to the next
// strategy and the chain ends in a color swatch.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	pageURL := imagecache.NormalizeURL(req.URL)
	key := imagecache.KeyForURL(pageURL)

	ctx, span := r.tracer.Start(ctx, "preview.Resolve", trace.WithAttributes(
		attribute.String("preview.url", pageURL),
		attribute.String("preview.key", key.Hash),
	))
	defer span.End()

	// Callers that bring a title skip title lookups, so they get their own
	// flight.
	flightKey := key.Hash
	if req.KnownTitle != "" {
		flightKey += "+title"
	}

	// The chain outlives any single caller: joiners keep waiting on it after
	// the leader leaves, and a finished chain still fills the cache.
	ch := r.flight.DoChan(flightKey, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deps.ResolveTimeout)
		defer cancel()
		return r.run(runCtx, pageURL, key, req.KnownTitle != ""), nil
	})

	var (
		out    outcome
		shared bool
	)
	select {
	case res := <-ch:
		out, shared = res.Val.(outcome), res.Shared
	case <-ctx.Done():
		out = outcome{strategy: StrategySwatch}
		slog.Debug("preview caller gave up", "url", pageURL, "error", ctx.Err())
	}

	title := out.title
	if req.KnownTitle != "" {
		title = req.KnownTitle
	}

	span.SetAttributes(attribute.String("preview.strategy", out.strategy), attribute.Bool("preview.shared", shared))
	r.metrics.record(ctx, out.strategy)
	slog.Info("preview resolved", "url", pageURL, "strategy", out.strategy, "shared", shared)

	if out.image != "" {
		return Result{PreviewImage: out.image, PageTitle: title}
	}
	cp := swatch.Generate(pageURL, title)
	return Result{PageTitle: title, ColorPreview: &cp}
}

func (r *Resolver) run(ctx context.Context, pageURL string, key imagecache.Key, titleKnown bool) outcome {
	a := &attempt{url: pageURL, key: key, titleKnown: titleKnown}
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		if image, ok := r.try(ctx, s, a); ok {
			return outcome{image: image, title: a.title, strategy: s.Name()}
		}
	}
	return outcome{title: a.title, strategy: StrategySwatch}
}

// try runs one strategy. A panic counts as "no result".
func (r *Resolver) try(ctx context.Context, s Strategy, a *attempt) (image string, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("preview strategy panicked",
				"strategy", s.Name(),
				"url", a.url,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			image, ok = "", false
		}
	}()

	ctx, span := r.tracer.Start(ctx, "preview.strategy."+s.Name())
	defer span.End()

	image, ok = s.Attempt(ctx, a)
	span.SetAttributes(attribute.Bool("preview.hit", ok))
	return image, ok
}
