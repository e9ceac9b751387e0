package bot

import (
	"strings"

	"github.com/tlcclub/tlcbot/core/telegram/callbacks"
	"github.com/tlcclub/tlcbot/internal/intake"
	"github.com/tlcclub/tlcbot/internal/media"

	tele "gopkg.in/telebot.v4"
)

// EventFrom converts a telebot update into an intake event.
// It reports false for updates the intake flow has no use for.
func EventFrom(c tele.Context) (intake.Event, bool) {
	user := c.Sender()
	if user == nil {
		return intake.Event{}, false
	}
	ev := intake.Event{
		UpdateID:  c.Update().ID,
		UserID:    user.ID,
		ChatID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}

	if cb := c.Callback(); cb != nil {
		key, _ := callbacks.ParseCallbackData(cb)
		ev.Kind = intake.KindCallback
		ev.CallbackID = cb.ID
		ev.CallbackData = key
		return ev, true
	}

	msg := c.Message()
	if msg == nil {
		return intake.Event{}, false
	}
	ev.MessageID = msg.ID

	switch {
	case msg.Photo != nil:
		ev.Kind = intake.KindPhoto
		ev.AlbumID = msg.AlbumID
		ev.Photo = &media.PhotoSource{
			FileID:   msg.Photo.FileID,
			UniqueID: msg.Photo.UniqueID,
			Size:     msg.Photo.FileSize,
			Width:    msg.Photo.Width,
			Height:   msg.Photo.Height,
		}
	case strings.HasPrefix(msg.Text, "/"):
		ev.Kind = intake.KindCommand
		ev.Command = commandName(msg.Text)
	case msg.Text != "":
		ev.Kind = intake.KindText
		ev.Text = msg.Text
	default:
		return intake.Event{}, false
	}
	return ev, true
}

// commandName strips the slash, any @botname suffix and arguments: "/New@tlc_bot x" -> "new".
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(strings.TrimSpace(name))
}
