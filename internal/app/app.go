// Package app assembles the listing bot from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"

	corecmd "github.com/tlcclub/tlcbot/core/cmd"
	"github.com/tlcclub/tlcbot/core/logger"
	tg "github.com/tlcclub/tlcbot/core/telegram"
	"github.com/tlcclub/tlcbot/core/telegram/state"
	"github.com/tlcclub/tlcbot/internal/album"
	"github.com/tlcclub/tlcbot/internal/archive"
	"github.com/tlcclub/tlcbot/internal/bot"
	"github.com/tlcclub/tlcbot/internal/compose"
	"github.com/tlcclub/tlcbot/internal/config"
	"github.com/tlcclub/tlcbot/internal/fsm"
	"github.com/tlcclub/tlcbot/internal/intake"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/media"
	"github.com/tlcclub/tlcbot/internal/metrics"
)

// Deps are the externally built pieces App needs. Zero fields are built from Config.
type Deps struct {
	DB         *sqlx.DB
	Bot        *tele.Bot
	Store      media.Store
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// App implements corecmd.TelegramApp for the listing bot.
type App struct {
	cfg *config.Config

	tgBot    *tele.Bot
	db       *sqlx.DB
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	intake   *intake.Dispatcher
	bot      *bot.Bot
	registry *tg.Registry
}

var (
	_ corecmd.TelegramApp     = (*App)(nil)
	_ corecmd.ServiceProvider = (*App)(nil)
	_ corecmd.Closer          = (*App)(nil)
)

// New builds every component of the bot. Nothing talks to Telegram until RunTelegram.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	tgBot := deps.Bot
	if tgBot == nil {
		b, err := tg.NewBot(cfg.CoreConfig())
		if err != nil {
			return nil, err
		}
		tgBot = b
	}

	store := deps.Store
	if store == nil {
		s, err := newMediaStore(ctx, cfg.Media)
		if err != nil {
			return nil, err
		}
		store = s
	}
	resolver, err := media.NewResolver(media.TelegramFetcher{Bot: tgBot}, store, media.Options{
		CacheSize: cfg.Media.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("app: media resolver: %w", err)
	}

	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	m := metrics.MustNewMetrics(reg)

	adminID := cfg.Telegram.AdminID
	sessions := state.NewMemoryStore[*listing.Session](listing.NewSession)
	machine := fsm.Default()
	collector := album.New(sessions, machine, resolver, album.Options{
		MaxPhotos: cfg.Listing.MaxPhotos,
		Metrics:   m,
	})
	composer := compose.New(store, compose.Options{
		Currency:     cfg.Listing.Currency,
		CaptionLimit: cfg.Listing.CaptionLimit,
	})
	sender := bot.NewSender(tgBot)

	intakeOpts := intake.Options{
		AdminID:   adminID,
		MaxPhotos: cfg.Listing.MaxPhotos,
		Metrics:   m,
	}
	botOpts := bot.Options{AdminID: adminID}
	if deps.DB != nil {
		arch := archive.New(deps.DB)
		intakeOpts.Archive = arch
		botOpts.Stats = arch
	}
	d := intake.New(sessions, machine, collector, composer, sender, intakeOpts)

	a := &App{
		cfg:      cfg,
		tgBot:    tgBot,
		db:       deps.DB,
		metrics:  m,
		gatherer: gatherer,
		intake:   d,
		bot:      bot.New(d, sender, botOpts),
		registry: tg.NewRegistry(),
	}
	if err := a.bot.Register(a.registry); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	logger.Info(ctx, "app", "built",
		slog.String("media_backend", cfg.Media.Backend),
		slog.Bool("archive", deps.DB != nil),
		slog.Int("max_photos", cfg.Listing.MaxPhotos),
	)
	return a, nil
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (media.Store, error) {
	switch cfg.Backend {
	case config.MediaBackendS3:
		return media.NewS3Store(ctx, media.S3Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		})
	default:
		return media.NewDirStore(cfg.Dir)
	}
}

// TelegramRunOptions returns the runtime configuration for the core runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Bot:         a.tgBot,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.metrics),
		Routes:      a.bot.Routes(a.registry),
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			logger.Info(ctx, "app", "sessions.dropped", slog.Int("count", a.intake.ActiveSessions()))
			return nil
		},
	}, nil
}

// Services returns the metrics listener when one is configured.
func (a *App) Services() []corecmd.Service {
	if a.cfg.Metrics.Listen == "" {
		return nil
	}
	addr := a.cfg.Metrics.Listen
	return []corecmd.Service{func(ctx context.Context) error {
		return metrics.Serve(ctx, addr, a.gatherer)
	}}
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
