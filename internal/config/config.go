package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// PHOTO_PIPELINE_FETCH_TIMEOUT=10s
const EnvPrefix = "PHOTO_PIPELINE"

// Export backends
const (
	BackendLocal   = "local"
	BackendGCS     = "gcs"
	BackendContent = "content"
)

// Config holds the pipeline configuration
type Config struct {
	Manifest ManifestConfig `mapstructure:"manifest"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Viewport ViewportConfig `mapstructure:"viewport"`
	Server   ServerConfig   `mapstructure:"server"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ManifestConfig selects where the photo list comes from.
// Either URL or Glob must be set.
type ManifestConfig struct {
	// URL of a JSON manifest (http, https or file scheme)
	URL string `mapstructure:"url"`

	// Root directory and doublestar pattern for a local photo list
	Root string `mapstructure:"root"`
	Glob string `mapstructure:"glob"`
}

// FetchConfig bounds image downloads
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// FilterConfig tunes the sepia filter
type FilterConfig struct {
	// Intensity in [0,1]; 0 leaves the image unchanged
	Intensity float64 `mapstructure:"intensity"`
}

// ViewportConfig sizes the headless list view
type ViewportConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ExportConfig selects where finished photos are written
type ExportConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Quality int    `mapstructure:"quality"`

	// SignedURLTTL is how long GCS links stay valid. Zero returns plain
	// public object URLs instead of signing.
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl"`

	// LedgerDSN is an optional PostgreSQL connection string. When set,
	// exported photos are recorded there and skipped on later runs.
	LedgerDSN string `mapstructure:"ledger_dsn"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given path. If path is empty, it looks
// for photo-pipeline.yaml in ./config and the working directory; a missing
// file is not an error. Environment variables with the PHOTO_PIPELINE_ prefix
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("photo-pipeline")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.WithDefaults()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("manifest.url", "")
	v.SetDefault("manifest.root", ".")
	v.SetDefault("manifest.glob", "")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "simple-photo-pipeline")
	v.SetDefault("filter.intensity", 0.8)
	v.SetDefault("viewport.page_size", 6)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("export.backend", BackendLocal)
	v.SetDefault("export.dir", "./export")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.quality", 80)
	v.SetDefault("export.signed_url_ttl", time.Hour)
	v.SetDefault("export.ledger_dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// WithDefaults fills in values for fields left at their zero value
func (c *Config) WithDefaults() {
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Viewport.PageSize <= 0 {
		c.Viewport.PageSize = 6
	}
	if c.Export.Backend == "" {
		c.Export.Backend = BackendLocal
	}
	if c.Export.Quality <= 0 {
		c.Export.Quality = 80
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the values a command depends on
func (c *Config) Validate() error {
	if c.Manifest.URL == "" && c.Manifest.Glob == "" {
		return errors.New("one of manifest.url or manifest.glob is required")
	}
	if c.Filter.Intensity < 0 || c.Filter.Intensity > 1 {
		return fmt.Errorf("filter.intensity must be within [0,1], got %g", c.Filter.Intensity)
	}
	if c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be within [1,100], got %d", c.Export.Quality)
	}
	if c.Export.SignedURLTTL < 0 {
		return fmt.Errorf("export.signed_url_ttl must not be negative, got %s", c.Export.SignedURLTTL)
	}
	switch c.Export.Backend {
	case BackendLocal, BackendContent:
	case BackendGCS:
		if c.Export.Bucket == "" {
			return errors.New("export.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown export.backend %q", c.Export.Backend)
	}
	return nil
}
