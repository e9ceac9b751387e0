// Package config holds the application configuration layered on top of the core bot config.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/tlcclub/tlcbot/core/config"
	coredatabase "github.com/tlcclub/tlcbot/core/database"
)

const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"

	defaultCurrency     = "₱"
	defaultMaxPhotos    = 10
	defaultCaptionLimit = 1024
	defaultMediaDir     = "media"
	defaultCacheSize    = 512
)

// ListingConfig shapes the published listing.
type ListingConfig struct {
	Currency     string `yaml:"currency" envconfig:"LISTING_CURRENCY"`
	MaxPhotos    int    `yaml:"max_photos" envconfig:"LISTING_MAX_PHOTOS"`
	CaptionLimit int    `yaml:"caption_limit" envconfig:"LISTING_CAPTION_LIMIT"`
}

// S3Config points the media store at a bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket" envconfig:"MEDIA_S3_BUCKET"`
	Region   string `yaml:"region" envconfig:"MEDIA_S3_REGION"`
	Prefix   string `yaml:"prefix" envconfig:"MEDIA_S3_PREFIX"`
	Endpoint string `yaml:"endpoint" envconfig:"MEDIA_S3_ENDPOINT"`
}

// MediaConfig selects where downloaded photos are kept.
type MediaConfig struct {
	Backend   string   `yaml:"backend" envconfig:"MEDIA_BACKEND"`
	Dir       string   `yaml:"dir" envconfig:"MEDIA_DIR"`
	CacheSize int      `yaml:"cache_size" envconfig:"MEDIA_CACHE_SIZE"`
	S3        S3Config `yaml:"s3"`
}

// MetricsConfig enables the metrics and health endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Listing  ListingConfig       `yaml:"listing"`
	Media    MediaConfig         `yaml:"media"`
	Database coredatabase.Config `yaml:"database"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays environment variables and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	if strings.TrimSpace(c.Listing.Currency) == "" {
		c.Listing.Currency = defaultCurrency
	}
	if c.Listing.MaxPhotos < 0 {
		return fmt.Errorf("listing.max_photos must be >= 0")
	}
	if c.Listing.MaxPhotos == 0 || c.Listing.MaxPhotos > defaultMaxPhotos {
		c.Listing.MaxPhotos = defaultMaxPhotos
	}
	if c.Listing.CaptionLimit < 0 {
		return fmt.Errorf("listing.caption_limit must be >= 0")
	}
	if c.Listing.CaptionLimit == 0 || c.Listing.CaptionLimit > defaultCaptionLimit {
		c.Listing.CaptionLimit = defaultCaptionLimit
	}

	c.Media.Backend = strings.ToLower(strings.TrimSpace(c.Media.Backend))
	switch c.Media.Backend {
	case "", MediaBackendLocal:
		c.Media.Backend = MediaBackendLocal
		if strings.TrimSpace(c.Media.Dir) == "" {
			c.Media.Dir = defaultMediaDir
		}
	case MediaBackendS3:
		if strings.TrimSpace(c.Media.S3.Bucket) == "" {
			return fmt.Errorf("media.s3.bucket is required when media.backend is 's3'")
		}
	default:
		return fmt.Errorf("invalid media.backend %q; allowed: local, s3", c.Media.Backend)
	}
	if c.Media.CacheSize < 0 {
		return fmt.Errorf("media.cache_size must be >= 0")
	}
	if c.Media.CacheSize == 0 {
		c.Media.CacheSize = defaultCacheSize
	}

	if c.Database.Enabled {
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
	return nil
}
