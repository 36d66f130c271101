package config

import "time"

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Database    DatabaseConfig    `koanf:"database"`
	Storage     StorageConfig     `koanf:"storage"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
	Fetch       FetchConfig       `koanf:"fetch"`
	Screenshot  ScreenshotConfig  `koanf:"screenshot"`
	Preview     PreviewConfig     `koanf:"preview"`
	Upload      UploadConfig      `koanf:"upload"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

type ServerConfig struct {
	Host           string    `koanf:"host"`
	Port           int       `koanf:"port"`
	PublicURL      string    `koanf:"public_url"`
	AllowedOrigins []string  `koanf:"allowed_origins"`
	TLS            TLSConfig `koanf:"tls"`
}

type TLSConfig struct {
	Mode     string        `koanf:"mode"` // off, auto, manual
	CertFile string        `koanf:"cert_file"`
	KeyFile  string        `koanf:"key_file"`
	Auto     AutoTLSConfig `koanf:"auto"`
}

type AutoTLSConfig struct {
	Domain   string `koanf:"domain"`
	Email    string `koanf:"email"`
	CacheDir string `koanf:"cache_dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type StorageConfig struct {
	Mode       string        `koanf:"mode"` // auto, persistent, ephemeral
	LocalDir   string        `koanf:"local_dir"`
	PublicPath string        `koanf:"public_path"`
	Freshness  time.Duration `koanf:"freshness"`
}

type ObjectStoreConfig struct {
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	Bucket          string `koanf:"bucket"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UseSSL          bool   `koanf:"use_ssl"`
	PathStyle       bool   `koanf:"path_style"`
	PublicDomain    string `koanf:"public_domain"`
}

// Configured reports whether enough is set to talk to a bucket.
func (c ObjectStoreConfig) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type FetchConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	TitleTimeout time.Duration `koanf:"title_timeout"`
	MaxBodySize  int64         `koanf:"max_body_size"`
	MaxImageSize int64         `koanf:"max_image_size"`
	MaxRedirects int           `koanf:"max_redirects"`
	UserAgent    string        `koanf:"user_agent"`
}

type ScreenshotConfig struct {
	Width   int                    `koanf:"width"`
	Height  int                    `koanf:"height"`
	Quality int                    `koanf:"quality"`
	Timeout time.Duration          `koanf:"timeout"`
	Remote  RemoteScreenshotConfig `koanf:"remote"`
	Local   LocalScreenshotConfig  `koanf:"local"`
}

type RemoteScreenshotConfig struct {
	Endpoint      string `koanf:"endpoint"`
	APIKey        string `koanf:"api_key"`
	RatePerMinute int    `koanf:"rate_per_minute"`
}

type LocalScreenshotConfig struct {
	Enabled bool   `koanf:"enabled"`
	Bin     string `koanf:"bin"`
}

type PreviewConfig struct {
	// Timeout bounds one resolution across all strategies.
	Timeout   time.Duration    `koanf:"timeout"`
	Overrides []OverrideConfig `koanf:"overrides"`
}

type OverrideConfig struct {
	Host  string `koanf:"host"`
	Title string `koanf:"title"`
	Image string `koanf:"image"`
}

type UploadConfig struct {
	MaxSize int64 `koanf:"max_size"`
}

type RateLimitConfig struct {
	Enabled  bool              `koanf:"enabled"`
	Generate RateLimitEndpoint `koanf:"generate"`
	Upload   RateLimitEndpoint `koanf:"upload"`
}

type RateLimitEndpoint struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // http, grpc
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
	Logs        bool   `koanf:"logs"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			PublicURL: "http://localhost:8080",
			TLS: TLSConfig{
				Mode: "off",
				Auto: AutoTLSConfig{CacheDir: "./data/certs"},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Path: "./data/bookmarkd.db",
		},
		Storage: StorageConfig{
			Mode:       "auto",
			LocalDir:   "./data/previews",
			PublicPath: "/media",
			Freshness:  7 * 24 * time.Hour,
		},
		ObjectStore: ObjectStoreConfig{
			UseSSL: true,
		},
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			TitleTimeout: 5 * time.Second,
			MaxBodySize:  2 * 1024 * 1024,  // 2MB
			MaxImageSize: 10 * 1024 * 1024, // 10MB
			MaxRedirects: 5,
		},
		Screenshot: ScreenshotConfig{
			Width:   1200,
			Height:  630,
			Quality: 80,
			Timeout: 30 * time.Second,
			Remote:  RemoteScreenshotConfig{RatePerMinute: 30},
		},
		Preview: PreviewConfig{
			Timeout: 90 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize: 5 * 1024 * 1024, // 5MB
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Generate: RateLimitEndpoint{Limit: 60, Window: time.Minute},
			Upload:   RateLimitEndpoint{Limit: 20, Window: time.Minute},
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "bookmarkd",
		},
	}
}
