package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// Observer receives one record per handled update.
type Observer interface {
	ObserveUpdate(kind string, took time.Duration, err error)
}

// UpdateKind names the shape of an update for logs and metrics.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message == nil:
		return "other"
	case u.Message.Photo != nil:
		if u.Message.AlbumID != "" {
			return "album_photo"
		}
		return "photo"
	case u.Message.Document != nil:
		return "document"
	case len(u.Message.Text) > 0 && u.Message.Text[0] == '/':
		return "command"
	case u.Message.Text != "":
		return "text"
	}
	return "message"
}

// ObserveMiddleware reports the kind, duration and result of every update to obs.
func ObserveMiddleware(obs Observer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if obs == nil {
			return next
		}
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)
			obs.ObserveUpdate(UpdateKind(c.Update()), time.Since(start), err)
			return err
		}
	}
}
