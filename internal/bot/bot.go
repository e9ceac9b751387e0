// Package bot adapts the intake flow to Telegram through telebot.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tlcclub/tlcbot/core/logger"
	tg "github.com/tlcclub/tlcbot/core/telegram"
	"github.com/tlcclub/tlcbot/core/telegram/commands"
	tghelpers "github.com/tlcclub/tlcbot/core/telegram/helpers"
	"github.com/tlcclub/tlcbot/core/telegram/router"
	"github.com/tlcclub/tlcbot/internal/archive"
	"github.com/tlcclub/tlcbot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

// StatsSource reports archived listing totals.
type StatsSource interface {
	Stats(ctx context.Context) (archive.Stats, error)
}

// Options configures the adapter.
type Options struct {
	AdminID int64
	// Stats backs /stats; nil when the archive is disabled.
	Stats StatsSource
}

// Bot binds the intake dispatcher to telebot commands, callbacks and messages.
type Bot struct {
	intake *intake.Dispatcher
	sender intake.Sender
	opts   Options
}

var _ router.Flow = (*Bot)(nil)

// New returns an adapter over d. sender must be the one d replies through.
func New(d *intake.Dispatcher, sender intake.Sender, opts Options) *Bot {
	return &Bot{intake: d, sender: sender, opts: opts}
}

// Register adds the intake commands and buttons to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     b.handle,
			Description: "Новое объявление",
			Aliases:     []string{"new"},
		},
		"/cancel": {
			Handler:     b.handle,
			Description: "Отменить объявление",
		},
		"/stats": {
			Handler:     b.stats,
			Description: "Статистика",
			AdminOnly:   true,
			Hidden:      true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}
	for _, key := range []string{intake.CallbackSell, intake.CallbackBuy, intake.CallbackDone} {
		if err := reg.RegisterCallback(key, b.handle); err != nil {
			return err
		}
	}
	return nil
}

// Routes returns every handler the bot needs, bound through the shared routers.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: b.opts.AdminID})
	routes = append(routes, router.MessageRoutes(b, reg, router.MessageOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: b.handle,
	}))
	return routes
}

// Active reports whether userID has a listing in progress.
func (b *Bot) Active(userID int64) bool {
	_, ok := b.intake.Step(userID)
	return ok
}

// HandleMessage feeds a text or photo message into the intake flow.
func (b *Bot) HandleMessage(c tele.Context) error {
	return b.handle(c)
}

func (b *Bot) handle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ev, ok := EventFrom(c)
	if !ok {
		if cb := c.Callback(); cb != nil {
			return b.sender.AcknowledgeCallback(ctx, cb.ID)
		}
		return nil
	}
	return b.intake.Handle(ctx, ev)
}

func (b *Bot) stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := fmt.Sprintf("Активных сессий: %d", b.intake.ActiveSessions())
	if b.opts.Stats != nil {
		st, err := b.opts.Stats.Stats(ctx)
		if err != nil {
			logger.Warn(ctx, "archive", "stats.fail", slog.String("err", err.Error()))
			text += "\nАрхив недоступен"
		} else {
			text += fmt.Sprintf("\nВсего объявлений: %d (продажа %d, покупка %d)\nДоставлено модератору: %d",
				st.Total, st.Sell, st.Buy, st.Forwarded)
		}
	}
	return b.sender.SendText(ctx, c.Chat().ID, text, intake.KeyboardNone)
}
