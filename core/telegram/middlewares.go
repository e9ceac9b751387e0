package telegram

import (
	"github.com/tlcclub/tlcbot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared global chain: panic recovery, request
// context and receipt logging, then per-update observation when obs is set.
func DefaultMiddlewares(obs middleware.Observer) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if obs != nil {
		mws = append(mws, Middleware{Name: "observe", Use: middleware.ObserveMiddleware(obs)})
	}
	return mws
}
