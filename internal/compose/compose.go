// Package compose renders a finished listing into the outbound image batch and
// delivers it to the submitting user and the admin destination.
package compose

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/core/telegram/format"
	"github.com/tlcclub/tlcbot/internal/listing"
)

const (
	DefaultCurrency     = "₱"
	DefaultCaptionLimit = 1024
	defaultWorkers      = 4

	disclaimer = "Никогда никому не переводите деньги без гарантий"
	ellipsis   = "…"
)

// ParseMode is the caption markup the batch is rendered in.
const ParseMode = "Markdown"

// Image is one entry of an outbound batch.
type Image struct {
	Ref     string
	Data    []byte
	Caption string
}

// Batch is an ordered multi-image payload. Only the first image carries a caption.
type Batch struct {
	Images    []Image
	ParseMode string
}

// Caption returns the batch caption, held by the first image.
func (b Batch) Caption() string {
	if len(b.Images) == 0 {
		return ""
	}
	return b.Images[0].Caption
}

// Opener re-reads a stored photo reference.
type Opener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Options configures a Composer.
type Options struct {
	Currency     string
	CaptionLimit int
	Workers      int
}

// Composer builds listing payloads.
type Composer struct {
	opener       Opener
	currency     string
	captionLimit int
	workers      int
}

// New builds a Composer with defaults for zero options.
func New(opener Opener, opts Options) *Composer {
	c := &Composer{
		opener:       opener,
		currency:     opts.Currency,
		captionLimit: opts.CaptionLimit,
		workers:      opts.Workers,
	}
	if c.currency == "" {
		c.currency = DefaultCurrency
	}
	if c.captionLimit <= 0 {
		c.captionLimit = DefaultCaptionLimit
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	return c
}

// Caption renders the listing text in a fixed field order, newline-joined.
// The description is shortened when the whole caption would exceed the limit.
func (c *Composer) Caption(l listing.Listing) string {
	caption := c.render(l, l.Description)
	if utf8.RuneCountInString(caption) <= c.captionLimit {
		return caption
	}
	desc := []rune(l.Description)
	over := utf8.RuneCountInString(caption) - c.captionLimit
	n := len(desc) - over - utf8.RuneCountInString(ellipsis)
	for ; n > 0; n-- {
		caption = c.render(l, string(desc[:n])+ellipsis)
		if utf8.RuneCountInString(caption) <= c.captionLimit {
			return caption
		}
	}
	return c.render(l, ellipsis)
}

func (c *Composer) render(l listing.Listing, description string) string {
	lines := []string{
		format.Bold("Наименование: "+format.MD(l.Title)) + " за " + format.Bold(format.MD(l.Price)) + c.currency,
		format.Bold("Описание") + ":",
		format.MD(description),
		format.Bold("Локация"),
		authorLabel(l.Type) + ": " + format.Link(l.Author.DisplayName(), "tg://user?id="+strconv.FormatInt(l.Author.ID, 10)),
		format.Code(disclaimer),
	}
	return strings.Join(lines, "\n")
}

func authorLabel(t listing.Type) string {
	if t == listing.TypeBuy {
		return "Покупатель"
	}
	return "Продавец"
}

// Build loads the listing photos in order and attaches the caption to the first one.
// Photos that cannot be reopened are dropped; a listing left with none is a compose failure.
func (c *Composer) Build(ctx context.Context, l listing.Listing) (Batch, error) {
	loaded := make([][]byte, len(l.Photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, ref := range l.Photos {
		g.Go(func() error {
			data, err := c.load(gctx, ref)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn(ctx, "publish", "photo.open_failed",
					slog.String("ref", ref),
					slog.String("err", err.Error()),
				)
				return nil
			}
			loaded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, listing.Wrap(err, listing.CodeComposeFailure, "load photos", "listing_id", l.ID)
	}

	batch := Batch{ParseMode: ParseMode}
	for i, data := range loaded {
		if data == nil {
			continue
		}
		batch.Images = append(batch.Images, Image{Ref: l.Photos[i], Data: data})
	}
	if len(batch.Images) == 0 {
		return Batch{}, listing.New(listing.CodeComposeFailure, "no photos could be loaded",
			"listing_id", l.ID, "photos", len(l.Photos))
	}
	// A media group displays only the first item's caption.
	batch.Images[0].Caption = c.Caption(l)
	return batch, nil
}

func (c *Composer) load(ctx context.Context, ref string) ([]byte, error) {
	rc, err := c.opener.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
