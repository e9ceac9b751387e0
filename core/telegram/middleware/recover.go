package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/tlcclub/tlcbot/core/logger"
	tghelpers "github.com/tlcclub/tlcbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged error so one bad update cannot stop the bot.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("telegram: handler panic: %v", r)
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.String("err", err.Error()),
					slog.String("kind", UpdateKind(c.Update())),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
