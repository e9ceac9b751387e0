package router

import (
	"strings"
	"time"

	tg "github.com/tlcclub/tlcbot/core/telegram"
	"github.com/tlcclub/tlcbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Flow is a multi-step conversation that owns messages from users with a session in progress.
type Flow interface {
	Active(userID int64) bool
	HandleMessage(c tele.Context) error
}

// MessageOptions controls fallback behaviour for messages outside a flow.
type MessageOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownPhoto    tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo and document messages.
// A user inside flow gets flow's handler; others get command aliases typed as text, then fallbacks.
func MessageRoutes(flow Flow, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inFlow := func(c tele.Context) bool {
		return flow != nil && c.Sender() != nil && flow.Active(c.Sender().ID)
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "flow.text", start, func() error {
				return flow.HandleMessage(c)
			})
		}
		if reg != nil {
			if key, cmd, ok := lookupTyped(reg, c.Text()); ok && !cmd.AdminOnly {
				return handleWithSummary(c, "command."+normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		return fallback(c, "unknown_text", start, opts.UnknownText)
	}

	photo := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "flow.photo", start, func() error {
				return flow.HandleMessage(c)
			})
		}
		return fallback(c, "unexpected_photo", start, opts.UnknownPhoto)
	}

	document := func(c tele.Context) error {
		return fallback(c, "unexpected_document", time.Now(), opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: photo},
		{Endpoint: tele.OnDocument, Handler: document},
	}
}

func fallback(c tele.Context, name string, start time.Time, h tele.HandlerFunc) error {
	if h == nil {
		logHandlerSummary(c, name, start, "skip", nil)
		return nil
	}
	return handleWithSummary(c, name, start, func() error { return h(c) })
}

// lookupTyped matches a single typed word such as "new" or "/new" against command names and aliases.
func lookupTyped(reg *tg.Registry, text string) (string, commands.Command, bool) {
	word := strings.TrimSpace(text)
	if word == "" || strings.ContainsAny(word, " \t\n") {
		return "", commands.Command{}, false
	}
	return reg.LookupCommand(word)
}
