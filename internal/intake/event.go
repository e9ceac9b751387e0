// Package intake routes inbound chat events through the listing state machine.
package intake

import (
	"context"
	"strings"

	"github.com/tlcclub/tlcbot/internal/compose"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/media"
)

// Kind is the transport shape of an event.
type Kind string

const (
	KindCommand  Kind = "command"
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindCallback Kind = "callback"
)

// Commands and callback payloads understood by the dispatcher.
const (
	CommandStart  = "start"
	CommandNew    = "new"
	CommandCancel = "cancel"

	CallbackSell = "sell"
	CallbackBuy  = "buy"
	CallbackDone = "done"
)

// Event is a transport-neutral inbound update.
type Event struct {
	Kind      Kind
	UpdateID  int
	UserID    int64
	ChatID    int64
	MessageID int
	Username  string
	FirstName string

	Text    string
	Command string

	CallbackID   string
	CallbackData string

	Photo   *media.PhotoSource
	AlbumID string
}

// Author returns the presentable identity of the sender.
func (e Event) Author() listing.Author {
	return listing.Author{ID: e.UserID, Username: e.Username, FirstName: e.FirstName}
}

func (e Event) chat() int64 {
	if e.ChatID != 0 {
		return e.ChatID
	}
	return e.UserID
}

// IsCancelText reports free text that cancels the flow.
func IsCancelText(text string) bool {
	t := strings.TrimSpace(text)
	return strings.EqualFold(t, "cancel") || strings.EqualFold(t, "отмена")
}

// Keyboard selects the reply markup attached to a text message.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	// KeyboardType offers the Sell and Buy buttons.
	KeyboardType
	// KeyboardDone offers the button that finishes photo upload.
	KeyboardDone
	// KeyboardRemove hides any reply keyboard.
	KeyboardRemove
)

// Sender is the outbound side of the chat transport.
type Sender interface {
	compose.BatchSender
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error
	AcknowledgeCallback(ctx context.Context, callbackID string) error
}
