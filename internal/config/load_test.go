package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// loadYAML writes content to a temp config file (none when empty) and loads
// it together with flags.
func loadYAML(t *testing.T, content string, flags *pflag.FlagSet) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadYAML(t, "", nil)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"tls mode", cfg.Server.TLS.Mode, "off"},
		{"tls cache dir", cfg.Server.TLS.Auto.CacheDir, "./data/certs"},
		{"storage mode", cfg.Storage.Mode, "auto"},
		{"storage public path", cfg.Storage.PublicPath, "/media"},
		{"freshness", cfg.Storage.Freshness, 7 * 24 * time.Hour},
		{"upload max size", cfg.Upload.MaxSize, int64(5 * 1024 * 1024)},
		{"preview timeout", cfg.Preview.Timeout, 90 * time.Second},
		{"screenshot size", [2]int{cfg.Screenshot.Width, cfg.Screenshot.Height}, [2]int{1200, 630}},
		{"fetch redirects", cfg.Fetch.MaxRedirects, 5},
		{"object store configured", cfg.ObjectStore.Configured(), false},
		{"telemetry", cfg.Telemetry.Enabled, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_TLSFromYAML(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want TLSConfig
	}{
		{
			name: "auto",
			yaml: `
server:
  tls:
    mode: auto
    auto:
      domain: bookmarks.example.com
      email: admin@example.com
      cache_dir: /var/lib/bookmarkd/certs
`,
			want: TLSConfig{Mode: "auto", Auto: AutoTLSConfig{Domain: "bookmarks.example.com", Email: "admin@example.com", CacheDir: "/var/lib/bookmarkd/certs"}},
		},
		{
			name: "auto keeps default cache dir",
			yaml: `
server:
  tls:
    mode: auto
    auto:
      domain: example.com
`,
			want: TLSConfig{Mode: "auto", Auto: AutoTLSConfig{Domain: "example.com", CacheDir: "./data/certs"}},
		},
		{
			name: "manual",
			yaml: `
server:
  tls:
    mode: manual
    cert_file: /etc/ssl/cert.pem
    key_file: /etc/ssl/key.pem
`,
			want: TLSConfig{Mode: "manual", CertFile: "/etc/ssl/cert.pem", KeyFile: "/etc/ssl/key.pem", Auto: AutoTLSConfig{CacheDir: "./data/certs"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loadYAML(t, tt.yaml, nil).Server.TLS; got != tt.want {
				t.Errorf("TLS = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoad_Env(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "simple key",
			env:  map[string]string{"BOOKMARKD_SERVER_PORT": "9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("port = %d, want 9090", cfg.Server.Port)
				}
			},
		},
		{
			name: "underscore in leaf",
			env:  map[string]string{"BOOKMARKD_STORAGE_LOCAL_DIR": "/srv/previews"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.LocalDir != "/srv/previews" {
					t.Errorf("local_dir = %q", cfg.Storage.LocalDir)
				}
			},
		},
		{
			name: "underscore in section and leaf",
			env: map[string]string{
				"BOOKMARKD_OBJECT_STORE_ENDPOINT":          "cos.ap-guangzhou.myqcloud.com",
				"BOOKMARKD_OBJECT_STORE_BUCKET":            "previews-1250000000",
				"BOOKMARKD_OBJECT_STORE_ACCESS_KEY_ID":     "AKID",
				"BOOKMARKD_OBJECT_STORE_SECRET_ACCESS_KEY": "secret",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ObjectStore.AccessKeyID != "AKID" || cfg.ObjectStore.SecretAccessKey != "secret" {
					t.Errorf("credentials = %q/%q", cfg.ObjectStore.AccessKeyID, cfg.ObjectStore.SecretAccessKey)
				}
				if !cfg.ObjectStore.Configured() {
					t.Error("expected object store to be configured")
				}
			},
		},
		{
			name: "deep nested",
			env:  map[string]string{"BOOKMARKD_SCREENSHOT_REMOTE_RATE_PER_MINUTE": "3"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Screenshot.Remote.RatePerMinute != 3 {
					t.Errorf("rate_per_minute = %d, want 3", cfg.Screenshot.Remote.RatePerMinute)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t, loadYAML(t, "", nil))
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("BOOKMARKD_FETCH_TIMEOUT", "3s")
	t.Setenv("BOOKMARKD_SERVER_PORT", "9090")

	flags := SetupFlags()
	if err := flags.Parse([]string{"--server.port=7070"}); err != nil {
		t.Fatal(err)
	}

	cfg := loadYAML(t, `
server:
  port: 8181
fetch:
  timeout: 20s
  title_timeout: 2s
`, flags)

	if cfg.Fetch.Timeout != 3*time.Second {
		t.Errorf("fetch.timeout = %v, env should beat YAML", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.TitleTimeout != 2*time.Second {
		t.Errorf("fetch.title_timeout = %v, YAML should beat defaults", cfg.Fetch.TitleTimeout)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, flags should beat env", cfg.Server.Port)
	}
}

func TestLoad_TLSFromFlags(t *testing.T) {
	flags := SetupFlags()
	if err := flags.Parse([]string{
		"--server.tls.mode=manual",
		"--server.tls.cert_file=/tmp/cert.pem",
		"--server.tls.key_file=/tmp/key.pem",
	}); err != nil {
		t.Fatal(err)
	}

	tls := loadYAML(t, "", flags).Server.TLS
	if tls.Mode != "manual" || tls.CertFile != "/tmp/cert.pem" || tls.KeyFile != "/tmp/key.pem" {
		t.Errorf("TLS = %+v", tls)
	}
}

func TestLoad_OverridesFromYAML(t *testing.T) {
	cfg := loadYAML(t, `
preview:
  overrides:
    - host: quark.cn
      title: Quark
    - host: example.org
      image: https://cdn.example.org/card.jpg
`, nil)

	want := []OverrideConfig{
		{Host: "quark.cn", Title: "Quark"},
		{Host: "example.org", Image: "https://cdn.example.org/card.jpg"},
	}
	if len(cfg.Preview.Overrides) != len(want) {
		t.Fatalf("overrides = %+v", cfg.Preview.Overrides)
	}
	for i := range want {
		if cfg.Preview.Overrides[i] != want[i] {
			t.Errorf("override %d = %+v, want %+v", i, cfg.Preview.Overrides[i], want[i])
		}
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  mode: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected validation error for unknown storage mode")
	}
}

func TestEnvKey(t *testing.T) {
	known := envKeys([]string{"object_store.access_key_id", "server.port", "screenshot.remote.rate_per_minute"})

	tests := map[string]string{
		"OBJECT_STORE_ACCESS_KEY_ID":        "object_store.access_key_id",
		"SERVER_PORT":                       "server.port",
		"SCREENSHOT_REMOTE_RATE_PER_MINUTE": "screenshot.remote.rate_per_minute",
		"UNKNOWN_THING":                     "unknown.thing",
	}
	for in, want := range tests {
		if got := envKey(in, known); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
