package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

func Validate(cfg *Config) error {
	var errs []error

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	if cfg.Server.PublicURL != "" {
		if _, err := url.Parse(cfg.Server.PublicURL); err != nil {
			errs = append(errs, fmt.Errorf("server.public_url is not a valid URL: %w", err))
		}
	}

	// Allowed origins validation
	for i, origin := range cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] %q is not a valid URL with scheme", i, origin))
		}
	}

	// TLS validation
	switch cfg.Server.TLS.Mode {
	case "", "off":
		// no additional validation needed
	case "auto":
		if cfg.Server.TLS.Auto.Domain == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.domain is required when tls mode is auto"))
		}
		if cfg.Server.TLS.Auto.CacheDir == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.cache_dir is required when tls mode is auto"))
		}
	case "manual":
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.cert_file is required when tls mode is manual"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.key_file is required when tls mode is manual"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.tls.mode must be off, auto, or manual"))
	}

	// Log validation
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error"))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json"))
	}

	// Database validation
	if cfg.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}

	// Storage validation
	switch cfg.Storage.Mode {
	case "auto", "persistent", "ephemeral":
	default:
		errs = append(errs, fmt.Errorf("storage.mode must be auto, persistent, or ephemeral"))
	}
	if cfg.Storage.Mode != "ephemeral" && cfg.Storage.LocalDir == "" {
		errs = append(errs, fmt.Errorf("storage.local_dir is required unless storage mode is ephemeral"))
	}
	if !strings.HasPrefix(cfg.Storage.PublicPath, "/") {
		errs = append(errs, fmt.Errorf("storage.public_path must start with /"))
	}
	if cfg.Storage.Freshness < time.Minute {
		errs = append(errs, fmt.Errorf("storage.freshness must be at least 1m"))
	}

	// Object store validation (only when any of it is set)
	store := cfg.ObjectStore
	if store.Endpoint != "" || store.Bucket != "" {
		if store.Endpoint == "" {
			errs = append(errs, fmt.Errorf("object_store.endpoint is required when object_store.bucket is set"))
		} else if strings.Contains(store.Endpoint, "://") {
			errs = append(errs, fmt.Errorf("object_store.endpoint must be a host without scheme"))
		}
		if store.Bucket == "" {
			errs = append(errs, fmt.Errorf("object_store.bucket is required when object_store.endpoint is set"))
		}
		if (store.AccessKeyID == "") != (store.SecretAccessKey == "") {
			errs = append(errs, fmt.Errorf("object_store.access_key_id and object_store.secret_access_key must be set together"))
		}
	}

	// Fetch validation
	if cfg.Fetch.Timeout < time.Second {
		errs = append(errs, fmt.Errorf("fetch.timeout must be at least 1s"))
	}
	if cfg.Fetch.TitleTimeout < time.Second {
		errs = append(errs, fmt.Errorf("fetch.title_timeout must be at least 1s"))
	}
	if cfg.Fetch.MaxBodySize < 1024 {
		errs = append(errs, fmt.Errorf("fetch.max_body_size must be at least 1KB"))
	}
	if cfg.Fetch.MaxImageSize < 1024 {
		errs = append(errs, fmt.Errorf("fetch.max_image_size must be at least 1KB"))
	}
	if cfg.Fetch.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_redirects must not be negative"))
	}

	// Screenshot validation
	if cfg.Screenshot.Width < 1 || cfg.Screenshot.Height < 1 {
		errs = append(errs, fmt.Errorf("screenshot.width and screenshot.height must be positive"))
	}
	if cfg.Screenshot.Quality < 1 || cfg.Screenshot.Quality > 100 {
		errs = append(errs, fmt.Errorf("screenshot.quality must be between 1 and 100"))
	}
	if cfg.Screenshot.Timeout < time.Second {
		errs = append(errs, fmt.Errorf("screenshot.timeout must be at least 1s"))
	}
	if ep := cfg.Screenshot.Remote.Endpoint; ep != "" {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("screenshot.remote.endpoint %q is not a valid URL with scheme", ep))
		}
	}

	if cfg.Preview.Timeout < cfg.Screenshot.Timeout {
		errs = append(errs, fmt.Errorf("preview.timeout must be at least screenshot.timeout"))
	}

	// Override validation
	for i, ov := range cfg.Preview.Overrides {
		if strings.TrimSpace(ov.Host) == "" {
			errs = append(errs, fmt.Errorf("preview.overrides[%d].host is required", i))
		}
		if ov.Title == "" && ov.Image == "" {
			errs = append(errs, fmt.Errorf("preview.overrides[%d] must set title or image", i))
		}
	}

	// Upload validation
	if cfg.Upload.MaxSize < 1024 {
		errs = append(errs, fmt.Errorf("upload.max_size must be at least 1KB"))
	}

	// Rate limit validation (only when enabled)
	if cfg.RateLimit.Enabled {
		for _, ep := range []struct {
			name string
			cfg  RateLimitEndpoint
		}{
			{"rate_limit.generate", cfg.RateLimit.Generate},
			{"rate_limit.upload", cfg.RateLimit.Upload},
		} {
			if ep.cfg.Limit < 1 {
				errs = append(errs, fmt.Errorf("%s.limit must be at least 1", ep.name))
			}
			if ep.cfg.Window < time.Second {
				errs = append(errs, fmt.Errorf("%s.window must be at least 1s", ep.name))
			}
		}
	}

	// Telemetry validation
	switch cfg.Telemetry.Protocol {
	case "", "http", "grpc":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol must be http or grpc"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
