package devtoolkit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ankushjain358/dev-toolkit/storage"
)

// SiteConfig holds all configuration for a dev-toolkit site.
type SiteConfig struct {
	Name        string `env:"SITE_NAME" envDefault:"Dev Toolkit"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	Description string `env:"SITE_DESCRIPTION"`
	Author      string `env:"SITE_AUTHOR"`

	Addr         string `env:"ADDR" envDefault:":3000"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/devtoolkit.db"`
	RedisURL     string `env:"REDIS_URL"` // optional; enables slug reservations

	SessionSecret string `env:"SESSION_SECRET"` // required
	CookieSecure  bool   `env:"COOKIE_SECURE" envDefault:"false"`

	PostCacheTTL  time.Duration `env:"POST_CACHE_TTL" envDefault:"5m"`
	AutosaveDelay time.Duration `env:"AUTOSAVE_DELAY" envDefault:"15s"`

	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Slug    SlugConfig    `envPrefix:"SLUG_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

// AuthConfig holds the secrets shared with the identity provider.
type AuthConfig struct {
	// TokenSecret verifies HS256 ID tokens presented at sign-in.
	TokenSecret string `env:"TOKEN_SECRET"`
	// TokenIssuer, when set, must match the iss claim.
	TokenIssuer string `env:"TOKEN_ISSUER"`
	// CallbackSecret authenticates the post-confirmation callback.
	CallbackSecret string `env:"CALLBACK_SECRET"`
}

// StorageConfig selects where uploaded images go.
type StorageConfig struct {
	Driver    string `env:"DRIVER" envDefault:"local"` // "local" or "minio"
	Dir       string `env:"DIR" envDefault:"data/media"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"devtoolkit-media"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	// PublicURL is the CDN origin objects are served from. Empty means the
	// app serves them itself under /public/.
	PublicURL string `env:"PUBLIC_URL"`
}

// SlugConfig tunes slug negotiation.
type SlugConfig struct {
	ProbeFailOpen  bool          `env:"PROBE_FAIL_OPEN" envDefault:"false"`
	ReservationTTL time.Duration `env:"RESERVATION_TTL" envDefault:"30s"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"0"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Dev Toolkit"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/devtoolkit.db"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.AutosaveDelay == 0 {
		c.AutosaveDelay = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/media"
	}
}

func (c SiteConfig) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("devtoolkit: SessionSecret is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("devtoolkit: Auth.TokenSecret is required")
	}
	if c.Auth.CallbackSecret == "" {
		return fmt.Errorf("devtoolkit: Auth.CallbackSecret is required")
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("devtoolkit: unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// NewLogger builds the application logger. format is "text" or "json".
func NewLogger(cfg LogConfig) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for site static assets (default "static").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithBucket replaces the bucket built from Config.Storage.
func WithBucket(b storage.Bucket) Option {
	return func(a *App) {
		a.Bucket = b
	}
}
