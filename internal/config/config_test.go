package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/tlcclub/tlcbot/core/config"
	coredatabase "github.com/tlcclub/tlcbot/core/database"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	return Config{Config: coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "t", AdminID: 1},
	}}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_id: 42
logging:
  level: debug
database:
  enabled: true
  driver: sqlite3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Equal(t, "₱", cfg.Listing.Currency)
	assert.Equal(t, 10, cfg.Listing.MaxPhotos)
	assert.Equal(t, 1024, cfg.Listing.CaptionLimit)
	assert.Equal(t, MediaBackendLocal, cfg.Media.Backend)
	assert.Equal(t, "media", cfg.Media.Dir)
	assert.Equal(t, 512, cfg.Media.CacheSize)

	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "tlcbot.db", cfg.Database.Path)
	assert.Equal(t, "migrations", cfg.Database.Migrations)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-file"
  admin_id: 42
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("LISTING_CURRENCY", "$")
	t.Setenv("METRICS_LISTEN", " :9100 ")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "$", cfg.Listing.Currency)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"missing token":       func(c *Config) { c.Telegram.Token = "" },
		"missing admin":       func(c *Config) { c.Telegram.AdminID = 0 },
		"bad run mode":        func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" },
		"negative timeout":    func(c *Config) { c.Telegram.LongPollTimeoutSeconds = -1 },
		"unknown backend":     func(c *Config) { c.Media.Backend = "ftp" },
		"s3 without bucket":   func(c *Config) { c.Media.Backend = "s3" },
		"negative photos":     func(c *Config) { c.Listing.MaxPhotos = -1 },
		"negative cache":      func(c *Config) { c.Media.CacheSize = -1 },
		"unknown db driver":   func(c *Config) { c.Database = coredatabase.Config{Enabled: true, Driver: "oracle"} },
		"webhook without url": func(c *Config) { c.Telegram.RunMode = coreconfig.RunModeWebhook },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Normalize())
		})
	}
}

func TestNormalizeCapsAndKeepsDisabledDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Listing.MaxPhotos = 25
	cfg.Listing.CaptionLimit = 4096
	cfg.Media.Backend = "S3"
	cfg.Media.S3.Bucket = "listings"
	cfg.Database.Driver = "oracle"

	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 10, cfg.Listing.MaxPhotos)
	assert.Equal(t, 1024, cfg.Listing.CaptionLimit)
	assert.Equal(t, MediaBackendS3, cfg.Media.Backend)
	assert.Equal(t, "oracle", cfg.Database.Driver, "disabled database is not validated")
}
