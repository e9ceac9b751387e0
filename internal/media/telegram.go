package media

import (
	"context"
	"io"

	tele "gopkg.in/telebot.v4"
)

// FileDownloader is the part of *tele.Bot used to pull files.
type FileDownloader interface {
	File(file *tele.File) (io.ReadCloser, error)
}

// TelegramFetcher downloads files through the Bot API.
type TelegramFetcher struct {
	Bot FileDownloader
}

// Fetch resolves fileID to its download path and streams the content.
func (f TelegramFetcher) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Bot.File(&tele.File{FileID: fileID})
}
