package bot

import (
	"bytes"
	"context"
	"time"

	tghelpers "github.com/tlcclub/tlcbot/core/telegram/helpers"
	"github.com/tlcclub/tlcbot/core/telegram/netutil"
	"github.com/tlcclub/tlcbot/internal/compose"
	"github.com/tlcclub/tlcbot/internal/intake"
	"github.com/tlcclub/tlcbot/internal/listing"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the sender uses.
type API interface {
	tghelpers.Poster
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// BatchRetry re-sends a listing batch after upload resets, flood waits and 5xx answers.
var BatchRetry = netutil.Policy{Attempts: 3, Backoff: 500 * time.Millisecond, MaxDelay: 15 * time.Second}

// Sender delivers intake output through the Bot API.
// Text goes through the shared async dispatcher; listing batches are sent inline so their outcome is known.
type Sender struct {
	api   API
	retry netutil.Policy
}

var _ intake.Sender = (*Sender)(nil)

// NewSender wraps api.
func NewSender(api API) *Sender {
	return &Sender{api: api, retry: BatchRetry}
}

// SendText queues text with the selected keyboard.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, kb intake.Keyboard) error {
	return tghelpers.SendTo(ctx, s.api, chatID, text, &tele.SendOptions{ReplyMarkup: markup(kb)})
}

// AcknowledgeCallback answers a button press so the client stops its spinner.
func (s *Sender) AcknowledgeCallback(_ context.Context, callbackID string) error {
	return s.api.Respond(&tele.Callback{ID: callbackID})
}

// SendImageBatch sends one image as a captioned photo and several as a media group.
func (s *Sender) SendImageBatch(ctx context.Context, chatID int64, b compose.Batch) error {
	if len(b.Images) == 0 {
		return listing.New(listing.CodeComposeFailure, "empty image batch", "chat_id", chatID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{ParseMode: tele.ParseMode(b.ParseMode)}
	to := tele.ChatID(chatID)

	// Readers are rebuilt per attempt; a failed upload has consumed them.
	err := netutil.Do(ctx, s.retry, func() error {
		if len(b.Images) == 1 {
			_, err := s.api.Send(to, photo(b.Images[0]), opts)
			return err
		}
		album := make(tele.Album, 0, len(b.Images))
		for _, img := range b.Images {
			album = append(album, photo(img))
		}
		_, err := s.api.SendAlbum(to, album, opts)
		return err
	})
	return listing.Wrap(err, listing.CodePublishSendFailure, "send listing", "chat_id", chatID, "images", len(b.Images))
}

func photo(img compose.Image) *tele.Photo {
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(img.Data)),
		Caption: img.Caption,
	}
}
