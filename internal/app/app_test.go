package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/tlcclub/tlcbot/core/config"
	"github.com/tlcclub/tlcbot/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "test", AdminID: 500},
		},
		Media: config.MediaConfig{Dir: filepath.Join(t.TempDir(), "media")},
	}
	require.NoError(t, cfg.Normalize())
	return cfg
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return Deps{Bot: b, Registerer: reg, Gatherer: reg}
}

func TestNewWiresLocalMediaAndRoutes(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, testDeps(t))
	require.NoError(t, err)

	info, err := os.Stat(cfg.Media.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, a.tgBot, opts.Bot)
	assert.NotEmpty(t, opts.Routes)
	assert.Len(t, opts.Middlewares, 3)
	for _, name := range []string{"start", "new", "cancel", "stats"} {
		_, _, ok := a.registry.LookupCommand(name)
		assert.True(t, ok, name)
	}
	assert.Empty(t, a.Services())
	assert.NoError(t, a.Close())
}

func TestServicesIncludeMetricsListener(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Listen = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, testDeps(t))
	require.NoError(t, err)
	require.Len(t, a.Services(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Services()[0](ctx))
}

func TestArchiveEnabledWithDatabase(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	deps := testDeps(t)
	deps.DB = db
	a, err := New(context.Background(), testConfig(t), deps)
	require.NoError(t, err)
	assert.NotNil(t, a.db)
	assert.NoError(t, a.Close())
	assert.Error(t, db.Ping())
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil, Deps{})
	assert.Error(t, err)
}
