// Package app wires configuration into a running preview service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bookmarkd/api/internal/config"
	"github.com/bookmarkd/api/internal/database"
	"github.com/bookmarkd/api/internal/extract"
	"github.com/bookmarkd/api/internal/handler"
	"github.com/bookmarkd/api/internal/imagecache"
	"github.com/bookmarkd/api/internal/objectstore"
	"github.com/bookmarkd/api/internal/pagemeta"
	"github.com/bookmarkd/api/internal/preview"
	"github.com/bookmarkd/api/internal/ratelimit"
	"github.com/bookmarkd/api/internal/screenshot"
	"github.com/bookmarkd/api/internal/server"
)

type App struct {
	Config      *config.Config
	DB          *database.DB
	Server      *server.Server
	Resolver    *preview.Resolver
	Cache       *imagecache.Layered
	Mode        imagecache.Mode
	Browser     *screenshot.Local
	PageMeta    *pagemeta.Repository
	RateLimiter *ratelimit.Limiter
}

// Pipeline is the preview machinery without the HTTP surface.
type Pipeline struct {
	DB       *database.DB
	Resolver *preview.Resolver
	Cache    *imagecache.Layered
	Mode     imagecache.Mode
	Browser  *screenshot.Local
	PageMeta *pagemeta.Repository
}

// Close releases the browser and the database.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Browser != nil {
		errs = append(errs, p.Browser.Close())
	}
	errs = append(errs, p.DB.Close())
	return errors.Join(errs...)
}

// NewPipeline opens the database and builds the resolver with every
// strategy the configuration allows.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	mode := imagecache.DetectMode(imagecache.Mode(cfg.Storage.Mode), cfg.Storage.LocalDir)

	var disk *imagecache.DiskTier
	if mode == imagecache.ModePersistent {
		disk, err = imagecache.NewDiskTier(cfg.Storage.LocalDir, cfg.Storage.PublicPath, cfg.Storage.Freshness)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating disk cache: %w", err)
		}
	}

	var remote *imagecache.RemoteTier
	if cfg.ObjectStore.Configured() {
		store, err := objectstore.New(objectstore.Options{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			PathStyle:       cfg.ObjectStore.PathStyle,
			PublicDomain:    cfg.ObjectStore.PublicDomain,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		remote = imagecache.NewRemoteTier(store)
	}

	cache := imagecache.NewLayered(disk, remote)
	if !cache.Durable() {
		slog.Warn("no durable image storage, previews fall back to swatches")
	}

	fetcher := extract.New(extract.Options{
		Timeout:      cfg.Fetch.Timeout,
		TitleTimeout: cfg.Fetch.TitleTimeout,
		MaxBodySize:  cfg.Fetch.MaxBodySize,
		MaxImageSize: cfg.Fetch.MaxImageSize,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UserAgent:    cfg.Fetch.UserAgent,
	})

	// A throwaway filesystem is no place for a browser.
	browser := screenshot.NewLocal(screenshot.LocalOptions{
		Enabled: cfg.Screenshot.Local.Enabled && mode == imagecache.ModePersistent,
		Bin:     cfg.Screenshot.Local.Bin,
		Quality: cfg.Screenshot.Quality,
	})
	shots := screenshot.NewService(cache, []screenshot.Backend{
		screenshot.NewRemote(screenshot.RemoteOptions{
			Endpoint:      cfg.Screenshot.Remote.Endpoint,
			APIKey:        cfg.Screenshot.Remote.APIKey,
			Quality:       cfg.Screenshot.Quality,
			RatePerMinute: cfg.Screenshot.Remote.RatePerMinute,
		}),
		browser,
	}, screenshot.Options{
		Width:   cfg.Screenshot.Width,
		Height:  cfg.Screenshot.Height,
		Quality: cfg.Screenshot.Quality,
		Timeout: cfg.Screenshot.Timeout,
	})

	meta := pagemeta.NewRepository(db.DB)

	resolver := preview.New(preview.Deps{
		Cache:          cache,
		Fetcher:        fetcher,
		Screenshots:    shots,
		Meta:           meta,
		Overrides:      overrides(cfg.Preview.Overrides),
		MaxUploadSize:  cfg.Upload.MaxSize,
		ResolveTimeout: cfg.Preview.Timeout,
	})

	slog.Info("preview pipeline ready",
		"storage_mode", string(mode),
		"disk_tier", cache.HasLocal(),
		"remote_tier", cache.HasRemote(),
		"strategies", strings.Join(resolver.Strategies(), ","),
		"screenshot_backends", strings.Join(shots.Backends(), ","),
	)

	return &Pipeline{
		DB:       db,
		Resolver: resolver,
		Cache:    cache,
		Mode:     mode,
		Browser:  browser,
		PageMeta: meta,
	}, nil
}

func New(cfg *config.Config) (*App, error) {
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}

	// Normalize publicURL to avoid double slashes in constructed URLs
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")

	deps := handler.Dependencies{
		Resolver:      p.Resolver,
		MaxUploadSize: cfg.Upload.MaxSize,
	}
	if disk := p.Cache.Local(); disk != nil {
		deps.Media = disk
	}
	h := handler.New(deps)

	// Build rate limiter (nil if disabled)
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		rules := []ratelimit.Rule{
			{Method: "POST", Path: "/api/preview/generate", Limit: cfg.RateLimit.Generate.Limit, Window: cfg.RateLimit.Generate.Window},
			{Method: "GET", Path: "/api/preview", Limit: cfg.RateLimit.Generate.Limit, Window: cfg.RateLimit.Generate.Window},
			{Method: "POST", Path: "/api/preview/upload", Limit: cfg.RateLimit.Upload.Limit, Window: cfg.RateLimit.Upload.Window},
		}
		limiter = ratelimit.NewLimiter(rules)
	}

	router := server.NewRouter(h, limiter, cfg.Server.AllowedOrigins)

	// Build TLS options
	tlsOpts := server.TLSOptions{
		Mode:     cfg.Server.TLS.Mode,
		CertFile: cfg.Server.TLS.CertFile,
		KeyFile:  cfg.Server.TLS.KeyFile,
		Domain:   cfg.Server.TLS.Auto.Domain,
		Email:    cfg.Server.TLS.Auto.Email,
		CacheDir: cfg.Server.TLS.Auto.CacheDir,
	}
	if tlsOpts.Mode == "auto" {
		if err := os.MkdirAll(tlsOpts.CacheDir, 0700); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("creating TLS cache directory: %w", err)
		}
	}

	srv := server.New(server.Options{
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: router,
		TLS:     tlsOpts,
		// Leave room to write the response after the slowest resolution.
		WriteTimeout: cfg.Preview.Timeout + 10*time.Second,
	})

	return &App{
		Config:      cfg,
		DB:          p.DB,
		Server:      srv,
		Resolver:    p.Resolver,
		Cache:       p.Cache,
		Mode:        p.Mode,
		Browser:     p.Browser,
		PageMeta:    p.PageMeta,
		RateLimiter: limiter,
	}, nil
}

func overrides(in []config.OverrideConfig) preview.Overrides {
	out := make(preview.Overrides, 0, len(in))
	for _, o := range in {
		out = append(out, preview.Override{Host: o.Host, Title: o.Title, Image: o.Image})
	}
	return out
}

// Start runs background cleanup and blocks serving HTTP.
func (a *App) Start(ctx context.Context) error {
	// Start rate limiter cleanup
	if a.RateLimiter != nil {
		go every(ctx, 10*time.Minute, a.RateLimiter.Cleanup)
	}

	// Start expired page metadata cleanup
	go every(ctx, time.Hour, func() {
		n, err := a.PageMeta.CleanExpired(ctx)
		if err != nil {
			slog.Warn("cleaning expired page metadata", "error", err)
			return
		}
		if n > 0 {
			slog.Debug("cleaned expired page metadata", "rows", n)
		}
	})

	slog.Info("starting bookmarkd",
		"addr", a.Server.Addr(),
		"database", a.Config.Database.Path,
		"storage_mode", string(a.Mode),
		"tls", a.Server.TLSMode(),
	)

	return a.Server.Start()
}

func every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return err
	}
	var errs []error
	if a.Browser != nil {
		errs = append(errs, a.Browser.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
