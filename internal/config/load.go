package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	defaults := Defaults()
	if err := k.Load(defaultsProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load from config file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	} else {
		// Try default config paths
		for _, path := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("loading config file: %w", err)
				}
				break
			}
		}
	}

	// 3. Load from environment variables (BOOKMARKD_ prefix)
	known := envKeys(k.Keys())
	if err := k.Load(env.Provider("BOOKMARKD_", ".", func(s string) string {
		return envKey(strings.TrimPrefix(s, "BOOKMARKD_"), known)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// 4. Load from CLI flags
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// 6. Validate
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

type defaultsProviderStruct struct {
	defaults *Config
}

func defaultsProvider(defaults *Config) *defaultsProviderStruct {
	return &defaultsProviderStruct{defaults: defaults}
}

func (d *defaultsProviderStruct) ReadBytes() ([]byte, error) {
	return nil, nil
}

func (d *defaultsProviderStruct) Read() (map[string]interface{}, error) {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host":            d.defaults.Server.Host,
			"port":            d.defaults.Server.Port,
			"public_url":      d.defaults.Server.PublicURL,
			"allowed_origins": d.defaults.Server.AllowedOrigins,
			"tls": map[string]interface{}{
				"mode":      d.defaults.Server.TLS.Mode,
				"cert_file": d.defaults.Server.TLS.CertFile,
				"key_file":  d.defaults.Server.TLS.KeyFile,
				"auto": map[string]interface{}{
					"domain":    d.defaults.Server.TLS.Auto.Domain,
					"email":     d.defaults.Server.TLS.Auto.Email,
					"cache_dir": d.defaults.Server.TLS.Auto.CacheDir,
				},
			},
		},
		"log": map[string]interface{}{
			"level":  d.defaults.Log.Level,
			"format": d.defaults.Log.Format,
		},
		"database": map[string]interface{}{
			"path": d.defaults.Database.Path,
		},
		"storage": map[string]interface{}{
			"mode":        d.defaults.Storage.Mode,
			"local_dir":   d.defaults.Storage.LocalDir,
			"public_path": d.defaults.Storage.PublicPath,
			"freshness":   d.defaults.Storage.Freshness.String(),
		},
		"object_store": map[string]interface{}{
			"endpoint":          d.defaults.ObjectStore.Endpoint,
			"region":            d.defaults.ObjectStore.Region,
			"bucket":            d.defaults.ObjectStore.Bucket,
			"access_key_id":     d.defaults.ObjectStore.AccessKeyID,
			"secret_access_key": d.defaults.ObjectStore.SecretAccessKey,
			"use_ssl":           d.defaults.ObjectStore.UseSSL,
			"path_style":        d.defaults.ObjectStore.PathStyle,
			"public_domain":     d.defaults.ObjectStore.PublicDomain,
		},
		"fetch": map[string]interface{}{
			"timeout":        d.defaults.Fetch.Timeout.String(),
			"title_timeout":  d.defaults.Fetch.TitleTimeout.String(),
			"max_body_size":  d.defaults.Fetch.MaxBodySize,
			"max_image_size": d.defaults.Fetch.MaxImageSize,
			"max_redirects":  d.defaults.Fetch.MaxRedirects,
			"user_agent":     d.defaults.Fetch.UserAgent,
		},
		"screenshot": map[string]interface{}{
			"width":   d.defaults.Screenshot.Width,
			"height":  d.defaults.Screenshot.Height,
			"quality": d.defaults.Screenshot.Quality,
			"timeout": d.defaults.Screenshot.Timeout.String(),
			"remote": map[string]interface{}{
				"endpoint":        d.defaults.Screenshot.Remote.Endpoint,
				"api_key":         d.defaults.Screenshot.Remote.APIKey,
				"rate_per_minute": d.defaults.Screenshot.Remote.RatePerMinute,
			},
			"local": map[string]interface{}{
				"enabled": d.defaults.Screenshot.Local.Enabled,
				"bin":     d.defaults.Screenshot.Local.Bin,
			},
		},
		"preview": map[string]interface{}{
			"timeout": d.defaults.Preview.Timeout.String(),
		},
		"upload": map[string]interface{}{
			"max_size": d.defaults.Upload.MaxSize,
		},
		"rate_limit": map[string]interface{}{
			"enabled": d.defaults.RateLimit.Enabled,
			"generate": map[string]interface{}{
				"limit":  d.defaults.RateLimit.Generate.Limit,
				"window": d.defaults.RateLimit.Generate.Window.String(),
			},
			"upload": map[string]interface{}{
				"limit":  d.defaults.RateLimit.Upload.Limit,
				"window": d.defaults.RateLimit.Upload.Window.String(),
			},
		},
		"telemetry": map[string]interface{}{
			"enabled":      d.defaults.Telemetry.Enabled,
			"endpoint":     d.defaults.Telemetry.Endpoint,
			"protocol":     d.defaults.Telemetry.Protocol,
			"insecure":     d.defaults.Telemetry.Insecure,
			"service_name": d.defaults.Telemetry.ServiceName,
			"logs":         d.defaults.Telemetry.Logs,
		},
	}, nil
}

func SetupFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("bookmarkd", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file")
	flags.String("server.host", "", "Server host")
	flags.Int("server.port", 0, "Server port")
	flags.String("server.public_url", "", "Public URL")
	flags.StringSlice("server.allowed_origins", nil, "Allowed CORS origins")
	flags.String("server.tls.mode", "", "TLS mode: off, auto, or manual")
	flags.String("server.tls.cert_file", "", "TLS certificate file (manual mode)")
	flags.String("server.tls.key_file", "", "TLS key file (manual mode)")
	flags.String("server.tls.auto.domain", "", "Domain for automatic TLS (auto mode)")
	flags.String("server.tls.auto.email", "", "Contact email for Let's Encrypt (auto mode)")
	flags.String("server.tls.auto.cache_dir", "", "Certificate cache directory (auto mode)")
	flags.String("log.level", "", "Log level: debug, info, warn, or error")
	flags.String("log.format", "", "Log format: text or json")
	flags.String("database.path", "", "Database path")
	flags.String("storage.mode", "", "Storage mode: auto, persistent, or ephemeral")
	flags.String("storage.local_dir", "", "Local preview cache directory")
	flags.Duration("storage.freshness", 0, "How long local cache entries stay fresh")
	flags.String("object_store.endpoint", "", "S3-compatible endpoint")
	flags.String("object_store.bucket", "", "Object store bucket")
	flags.String("object_store.region", "", "Object store region")
	flags.Duration("fetch.timeout", 0, "Page fetch timeout")
	flags.String("screenshot.remote.endpoint", "", "Screenshot API endpoint")
	flags.Bool("screenshot.local.enabled", false, "Enable the headless browser backend")
	flags.Int64("upload.max_size", 0, "Max upload size in bytes")
	flags.Bool("telemetry.enabled", false, "Export traces and metrics over OTLP")
	return flags
}

// envKeys maps each known key with dots replaced by underscores back to the
// key, so OBJECT_STORE_ACCESS_KEY_ID finds object_store.access_key_id.
func envKeys(keys []string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[strings.ReplaceAll(k, ".", "_")] = k
	}
	return m
}

func envKey(name string, known map[string]string) string {
	name = strings.ToLower(name)
	if k, ok := known[name]; ok {
		return k
	}
	return strings.ReplaceAll(name, "_", ".")
}
