// Package album collects photos for a session while it waits at the photo step.
//
// A photo is handled in three phases. A slot is reserved under the user's lock,
// the media is resolved without holding it, and the result is filled back under
// the lock only if the same session is still collecting. Late results for a
// cancelled or restarted session are dropped.
package album

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/core/telegram/state"
	"github.com/tlcclub/tlcbot/internal/fsm"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/media"
	"github.com/tlcclub/tlcbot/internal/metrics"
)

// MaxPhotos is the largest media group the transport accepts.
const MaxPhotos = 10

// Resolver turns an inbound photo into a durable reference.
type Resolver interface {
	Resolve(ctx context.Context, userID int64, src *media.PhotoSource) (string, error)
}

// Photo is one inbound photo event.
type Photo struct {
	UserID int64
	// Seq is the chat message id; it fixes the photo's position in the album.
	Seq int
	// Group is the transport media group id, empty for a standalone photo.
	Group  string
	Source *media.PhotoSource
}

// Result reports what happened to a photo.
type Result struct {
	Ref     string
	Stored  bool
	Stale   bool
	Skipped bool
	// Prompt is true for the first stored photo of a media group.
	Prompt bool
	// Notify is true the first time a full album rejects a photo.
	Notify bool
}

// Collector implements photo accumulation and sealing.
type Collector struct {
	store    *state.Store[*listing.Session]
	machine  *fsm.Machine
	resolver Resolver
	metrics  *metrics.Metrics
	max      int
}

// Options tunes a Collector.
type Options struct {
	MaxPhotos int
	Metrics   *metrics.Metrics
}

// New builds a Collector. MaxPhotos outside 1..MaxPhotos falls back to MaxPhotos.
func New(store *state.Store[*listing.Session], machine *fsm.Machine, resolver Resolver, opts Options) *Collector {
	limit := opts.MaxPhotos
	if limit <= 0 || limit > MaxPhotos {
		limit = MaxPhotos
	}
	return &Collector{
		store:    store,
		machine:  machine,
		resolver: resolver,
		metrics:  opts.Metrics,
		max:      limit,
	}
}

const fullNoticeKey = "\x00full"

// Add appends p to the user's album. Media resolution failures skip the photo
// and are reported through Result, not as an error.
func (c *Collector) Add(ctx context.Context, p Photo) (Result, error) {
	var (
		res       Result
		idx       int
		sessionID uuid.UUID
	)
	in := fsm.Input{Kind: fsm.EventPhoto, HasImage: !p.Source.Empty()}

	err := c.store.Update(p.UserID, func(s *listing.Session) error {
		if _, err := c.machine.Step(s, in); err != nil {
			return err
		}
		if s.Album.Live() >= c.max {
			res.Notify = s.Album.MarkPrompted(fullNoticeKey)
			return listing.New(listing.CodeAlbumFull, "album is full", "max", c.max)
		}
		idx = s.Album.Reserve(p.Seq)
		sessionID = s.ID
		return nil
	})
	if err != nil {
		if state.IsNoSession(err) {
			err = listing.ErrNoSession
		}
		c.metrics.PhotoResolved("rejected")
		return res, err
	}

	start := time.Now()
	ref, resolveErr := c.resolver.Resolve(ctx, p.UserID, p.Source)
	if resolveErr != nil {
		logger.Warn(ctx, "album", "photo.resolve_failed",
			slog.Int("seq", p.Seq),
			slog.String("album_id", p.Group),
			slog.String("err", resolveErr.Error()),
			slog.String("err_code", string(listing.CodeMediaResolveFailure)),
			slog.Duration("duration", logger.Took(start)),
		)
		ref = ""
	}

	err = c.store.Update(p.UserID, func(s *listing.Session) error {
		if s.ID != sessionID || s.Sealed() {
			return errStale
		}
		s.Album.Fill(idx, ref)
		if ref != "" {
			res.Prompt = s.Album.MarkPrompted(groupKey(p))
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errStale) || state.IsNoSession(err):
		logger.Debug(ctx, "album", "photo.stale", slog.Int("seq", p.Seq))
		c.metrics.PhotoResolved("stale")
		res.Stale = true
		return res, nil
	default:
		return res, err
	}

	res.Ref = ref
	if ref == "" {
		res.Skipped = true
		c.metrics.PhotoResolved("skipped")
		return res, nil
	}
	res.Stored = true
	c.metrics.PhotoResolved("stored")
	logger.Debug(ctx, "album", "photo.stored",
		slog.Int("seq", p.Seq),
		slog.String("album_id", p.Group),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

// Seal waits for in-flight photos of the user's album, then advances the session past
// the photo step and returns the ordered references.
func (c *Collector) Seal(ctx context.Context, userID int64) ([]string, error) {
	for {
		var (
			wait   <-chan struct{}
			photos []string
		)
		err := c.store.Update(userID, func(s *listing.Session) error {
			if s.Step == listing.StepAwaitPhotos {
				if ch := s.Album.Drained(); ch != nil {
					wait = ch
					return nil
				}
			}
			if _, err := c.machine.Step(s, fsm.Input{Kind: fsm.EventPhotosDone}); err != nil {
				return err
			}
			photos = slices.Clone(s.Photos)
			return nil
		})
		if err != nil {
			if state.IsNoSession(err) {
				return nil, listing.ErrNoSession
			}
			return nil, err
		}
		if wait == nil {
			logger.Debug(ctx, "album", "sealed", slog.Int("photos", len(photos)))
			return photos, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

var errStale = errors.New("album: session changed while resolving")

func groupKey(p Photo) string {
	if p.Group != "" {
		return p.Group
	}
	return "msg:" + strconv.Itoa(p.Seq)
}
