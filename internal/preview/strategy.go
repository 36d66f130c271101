package preview

import (
	"context"
	"log/slog"

	"github.com/bookmarkd/api/internal/imagecache"
	"github.com/bookmarkd/api/internal/pagemeta"
)

// Strategy is one link of the fallback chain.
type Strategy interface {
	Name() string
	// Available is checked once, when the Resolver is built.
	Available() bool
	// Attempt returns the preview image URL, or false to fall through.
	Attempt(ctx context.Context, a *attempt) (string, bool)
}

// attempt carries state between strategies of one resolution.
type attempt struct {
	url        string
	key        imagecache.Key
	title      string // best page title seen so far
	titleKnown bool   // the caller supplied a title; skip title lookups
}

type cacheStrategy struct {
	cache     Cache
	fetcher   PageFetcher
	meta      MetaStore
	overrides Overrides
}

func (s *cacheStrategy) Name() string { return "cache" }

func (s *cacheStrategy) Available() bool { return s.cache != nil && s.cache.Durable() }

func (s *cacheStrategy) Attempt(ctx context.Context, a *attempt) (string, bool) {
	hit, err := s.cache.Lookup(ctx, a.key)
	if err != nil {
		slog.Warn("preview cache lookup failed", "key", a.key.String(), "error", err)
		return "", false
	}
	if hit == nil {
		return "", false
	}

	if !a.titleKnown {
		a.title = s.title(ctx, a)
	}
	if ov, ok := s.overrides.Match(a.url); ok && ov.Title != "" {
		a.title = ov.Title
	}
	return hit.URL(), true
}

// title never fails the hit.
func (s *cacheStrategy) title(ctx context.Context, a *attempt) string {
	if s.meta != nil {
		rec, err := s.meta.Get(ctx, a.key.Hash)
		if err != nil {
			slog.Warn("page meta lookup failed", "key", a.key.Hash, "error", err)
		} else if rec != nil {
			return rec.Title
		}
	}
	if s.fetcher == nil {
		return ""
	}
	title, err := s.fetcher.FetchTitle(ctx, a.url)
	if err != nil {
		slog.Debug("title fetch failed", "url", a.url, "error", err)
		return ""
	}
	return title
}

type extractStrategy struct {
	cache     Cache
	fetcher   PageFetcher
	meta      MetaStore
	overrides Overrides
	encode    imagecache.EncodeOptions
}

func (s *extractStrategy) Name() string { return "extract" }

// Available does not require storage: without it the page title is still
// worth learning for the swatch.
func (s *extractStrategy) Available() bool { return s.fetcher != nil }

func (s *extractStrategy) Attempt(ctx context.Context, a *attempt) (string, bool) {
	var image string
	page, err := s.fetcher.Extract(ctx, a.url)
	if err != nil {
		slog.Info("page extraction failed", "url", a.url, "error", err)
	} else {
		if a.title == "" {
			a.title = page.Title
		}
		image = page.Image
	}

	if ov, ok := s.overrides.Match(a.url); ok {
		if ov.Title != "" {
			a.title = ov.Title
		}
		if ov.Image != "" {
			image = ov.Image
		}
	}

	if image == "" {
		return "", false
	}
	if s.cache == nil || !s.cache.Durable() {
		slog.Info("no durable image storage, skipping download", "url", a.url)
		return "", false
	}

	data, err := s.fetcher.Download(ctx, image)
	if err != nil {
		slog.Info("image download failed", "url", a.url, "image", image, "error", err)
		return "", false
	}
	jpg, err := imagecache.ToJPEG(data, s.encode)
	if err != nil {
		slog.Info("image conversion failed", "url", a.url, "image", image, "error", err)
		return "", false
	}
	stored, err := s.cache.Store(ctx, a.key, jpg)
	if err != nil {
		slog.Warn("storing preview failed", "url", a.url, "error", err)
		return "", false
	}

	saveMeta(ctx, s.meta, a, stored, s.Name())
	return stored, true
}

type screenshotStrategy struct {
	shots Screenshotter
	meta  MetaStore
}

func (s *screenshotStrategy) Name() string { return "screenshot" }

func (s *screenshotStrategy) Available() bool { return s.shots != nil && s.shots.Available() }

func (s *screenshotStrategy) Attempt(ctx context.Context, a *attempt) (string, bool) {
	res, err := s.shots.Capture(ctx, a.url, 0, 0)
	if err != nil || !res.Success {
		slog.Info("screenshot fallback failed", "url", a.url, "error", err)
		return "", false
	}
	saveMeta(ctx, s.meta, a, res.PreviewImage, s.Name())
	return res.PreviewImage, true
}

func saveMeta(ctx context.Context, meta MetaStore, a *attempt, image, strategy string) {
	if meta == nil {
		return
	}
	err := meta.Save(ctx, &pagemeta.Record{
		Key:      a.key.Hash,
		URL:      a.url,
		Title:    a.title,
		ImageURL: image,
		Strategy: strategy,
	})
	if err != nil {
		slog.Warn("saving page meta failed", "key", a.key.Hash, "error", err)
	}
}
