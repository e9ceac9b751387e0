package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Poster sends a single message. *tele.Bot satisfies it.
type Poster interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Enqueue runs j on the shared dispatcher, or inline when none is wired or the queue is unavailable.
func Enqueue(ctx context.Context, j sender.Job) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return j.Run()
	}
	err := disp.Enqueue(ctx, j)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", j.Action),
			slog.String("endpoint", j.Endpoint),
			slog.String("err", err.Error()),
		)
		return j.Run()
	}
	return err
}

// SendTo queues a text message to chatID. Messages to one chat are delivered in call order.
func SendTo(ctx context.Context, api Poster, chatID int64, text string, opts *tele.SendOptions) error {
	return Enqueue(ctx, sender.Job{
		Key:      chatID,
		Action:   "send.text",
		Endpoint: "sendMessage",
		Run: func() error {
			var err error
			if opts != nil {
				_, err = api.Send(tele.ChatID(chatID), text, opts)
			} else {
				_, err = api.Send(tele.ChatID(chatID), text)
			}
			return err
		},
	})
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	var key int64
	if chat := c.Chat(); chat != nil {
		key = chat.ID
	}
	return Enqueue(BuildContext(c), sender.Job{
		Key:      key,
		Action:   "send.text",
		Endpoint: "sendMessage",
		Run: func() error {
			if sendOpts != nil {
				return c.Send(text, sendOpts)
			}
			return c.Send(text)
		},
	})
}
