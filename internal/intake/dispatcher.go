package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/core/telegram/state"
	"github.com/tlcclub/tlcbot/internal/album"
	"github.com/tlcclub/tlcbot/internal/archive"
	"github.com/tlcclub/tlcbot/internal/compose"
	"github.com/tlcclub/tlcbot/internal/fsm"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/metrics"
)

const defaultSealTimeout = time.Minute

// Archive stores published listings.
type Archive interface {
	Save(ctx context.Context, l listing.Listing, out archive.Outcome) error
}

// Options configures a Dispatcher.
type Options struct {
	AdminID     int64
	MaxPhotos   int
	SealTimeout time.Duration
	Archive     Archive
	Metrics     *metrics.Metrics
}

// Dispatcher maps inbound events onto state machine transitions and their effects.
// Events for different users run in parallel; the store serializes one user's mutations.
type Dispatcher struct {
	store    *state.Store[*listing.Session]
	machine  *fsm.Machine
	album    *album.Collector
	composer *compose.Composer
	sender   Sender
	archive  Archive
	metrics  *metrics.Metrics

	adminID     int64
	maxPhotos   int
	sealTimeout time.Duration
}

// New wires a Dispatcher.
func New(store *state.Store[*listing.Session], machine *fsm.Machine, collector *album.Collector,
	composer *compose.Composer, sender Sender, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		machine:     machine,
		album:       collector,
		composer:    composer,
		sender:      sender,
		archive:     opts.Archive,
		metrics:     opts.Metrics,
		adminID:     opts.AdminID,
		maxPhotos:   opts.MaxPhotos,
		sealTimeout: opts.SealTimeout,
	}
	if d.maxPhotos <= 0 || d.maxPhotos > album.MaxPhotos {
		d.maxPhotos = album.MaxPhotos
	}
	if d.sealTimeout <= 0 {
		d.sealTimeout = defaultSealTimeout
	}
	return d
}

// Step reports the user's current step, or false when no session exists.
func (d *Dispatcher) Step(userID int64) (listing.Step, bool) {
	s, ok := d.store.Get(userID)
	if !ok {
		return listing.StepIdle, false
	}
	return s.Step, true
}

// ActiveSessions reports the number of sessions in progress.
func (d *Dispatcher) ActiveSessions() int {
	return d.store.Len()
}

// Handle processes one event. Ignored and rejected input is not an error;
// only failures worth surfacing to the transport are returned.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	ctx = logger.WithUser(ctx, ev.UserID)

	if ev.Kind == KindCallback && ev.CallbackID != "" {
		if err := d.sender.AcknowledgeCallback(ctx, ev.CallbackID); err != nil {
			logger.Debug(ctx, "intake", "callback.ack_failed", slog.String("err", err.Error()))
		}
	}

	switch ev.Kind {
	case KindCommand:
		switch ev.Command {
		case CommandStart, CommandNew:
			return d.start(ctx, ev)
		case CommandCancel:
			return d.cancel(ctx, ev)
		}
	case KindText:
		if IsCancelText(ev.Text) {
			return d.cancel(ctx, ev)
		}
		return d.text(ctx, ev)
	case KindPhoto:
		return d.photo(ctx, ev)
	case KindCallback:
		switch ev.CallbackData {
		case CallbackSell, CallbackBuy:
			return d.typeSelected(ctx, ev)
		case CallbackDone:
			return d.photosDone(ctx, ev)
		}
	}
	d.ignored(ctx, ev, nil)
	return nil
}

func (d *Dispatcher) start(ctx context.Context, ev Event) error {
	from, exists := d.Step(ev.UserID)
	tr, err := d.machine.Lookup(from, fsm.EventStart)
	if err != nil {
		d.ignored(ctx, ev, err)
		return nil
	}
	// Restart discards the existing session; from idle, concurrent starts share one.
	var fresh *listing.Session
	if exists {
		fresh = d.store.Create(ev.UserID)
	} else {
		fresh = d.store.GetOrCreate(ev.UserID)
	}
	err = d.store.Update(ev.UserID, func(s *listing.Session) error {
		if s.ID != fresh.ID {
			return state.ErrNoSession
		}
		s.ChatID = ev.chat()
		return d.machine.Enter(tr, s, fsm.Input{Kind: fsm.EventStart, Author: ev.Author()})
	})
	if err != nil {
		// A newer start replaced this session before it was initialised.
		d.ignored(ctx, ev, err)
		return nil
	}
	d.transitioned(ctx, from, tr.To, slog.String("session_id", fresh.ID.String()))
	d.metrics.SetSessions(d.store.Len())
	d.reply(ctx, ev.chat(), textIntro, KeyboardType)
	return nil
}

func (d *Dispatcher) cancel(ctx context.Context, ev Event) error {
	from, ok := d.Step(ev.UserID)
	if !ok {
		d.ignored(ctx, ev, listing.ErrNoSession)
		return nil
	}
	tr, err := d.machine.Lookup(from, fsm.EventCancel)
	if err != nil {
		d.ignored(ctx, ev, err)
		return nil
	}
	if !d.store.Remove(ev.UserID) {
		d.ignored(ctx, ev, listing.ErrNoSession)
		return nil
	}
	d.transitioned(ctx, from, tr.To, slog.String("outcome", "cancelled"))
	d.metrics.SetSessions(d.store.Len())
	d.reply(ctx, ev.chat(), textCancelled, KeyboardRemove)
	return nil
}

func (d *Dispatcher) typeSelected(ctx context.Context, ev Event) error {
	var (
		from listing.Step
		sess *listing.Session
	)
	in := fsm.Input{Kind: fsm.EventTypeSelected, Type: ev.CallbackData, Author: ev.Author()}
	tr, err := d.update(ev.UserID, func(s *listing.Session) (fsm.Transition, error) {
		from = s.Step
		tr, err := d.machine.Step(s, in)
		if err == nil {
			sess = s.Clone()
		}
		return tr, err
	})
	if err != nil {
		return d.rejected(ctx, ev, from, err)
	}
	d.transitioned(ctx, from, tr.To, slog.String("listing_type", string(sess.Type)))
	d.reply(ctx, ev.chat(), textGreeting(sess.Type, sess.Author)+"\n\n"+prompt(tr.To), KeyboardNone)
	return nil
}

func (d *Dispatcher) text(ctx context.Context, ev Event) error {
	var (
		from listing.Step
		snap listing.Listing
	)
	in := fsm.Input{Kind: fsm.EventText, Text: ev.Text}
	tr, err := d.update(ev.UserID, func(s *listing.Session) (fsm.Transition, error) {
		from = s.Step
		tr, err := d.machine.Step(s, in)
		if err == nil && tr.Effect == fsm.EffectPublish {
			snap = s.Listing()
		}
		return tr, err
	})
	if err != nil {
		return d.rejected(ctx, ev, from, err)
	}
	d.transitioned(ctx, from, tr.To)
	if tr.Effect == fsm.EffectPublish {
		return d.publish(ctx, ev, snap)
	}
	d.reply(ctx, ev.chat(), prompt(tr.To), KeyboardNone)
	return nil
}

func (d *Dispatcher) photo(ctx context.Context, ev Event) error {
	res, err := d.album.Add(ctx, album.Photo{
		UserID: ev.UserID,
		Seq:    ev.MessageID,
		Group:  ev.AlbumID,
		Source: ev.Photo,
	})
	switch {
	case err == nil:
	case listing.HasCode(err, listing.CodeAlbumFull):
		if res.Notify {
			d.reply(ctx, ev.chat(), textAlbumFull(d.maxPhotos), KeyboardDone)
		}
		logger.Info(ctx, "intake", "photo.rejected",
			slog.String("status", "rejected"),
			slog.String("err_code", string(listing.CodeAlbumFull)),
		)
		return nil
	case listing.IsIgnored(err) || listing.IsValidation(err):
		d.ignored(ctx, ev, err)
		return nil
	default:
		return err
	}

	switch {
	case res.Skipped:
		d.reply(ctx, ev.chat(), textPhotoFailed, KeyboardNone)
	case res.Prompt:
		d.reply(ctx, ev.chat(), textPhotosDone, KeyboardDone)
	}
	return nil
}

func (d *Dispatcher) photosDone(ctx context.Context, ev Event) error {
	sealCtx, cancel := context.WithTimeout(ctx, d.sealTimeout)
	defer cancel()

	start := time.Now()
	photos, err := d.album.Seal(sealCtx, ev.UserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "intake", "seal.timeout",
				slog.Duration("duration", logger.Took(start)),
			)
			return nil
		}
		return d.rejected(ctx, ev, listing.StepAwaitPhotos, err)
	}
	d.transitioned(ctx, listing.StepAwaitPhotos, listing.StepAwaitPrice,
		slog.Int("photos", len(photos)),
		slog.Duration("duration", logger.Took(start)),
	)
	d.reply(ctx, ev.chat(), prompt(listing.StepAwaitPrice), KeyboardRemove)
	return nil
}

// publish composes the finished listing, destroys the session and delivers the batch.
func (d *Dispatcher) publish(ctx context.Context, ev Event, l listing.Listing) error {
	ctx = logger.WithUser(ctx, l.Author.ID)
	start := time.Now()

	batch, buildErr := d.composer.Build(ctx, l)
	d.finish(ctx, ev.UserID, l)

	if buildErr != nil {
		logger.Error(ctx, "publish", "compose.fail",
			slog.String("listing_id", l.ID.String()),
			slog.String("err", buildErr.Error()),
			slog.String("err_code", string(listing.CodeOf(buildErr))),
		)
		d.reply(ctx, ev.chat(), textComposeFail, KeyboardNone)
		return nil
	}

	report := compose.Publish(ctx, d.sender, batch,
		compose.Destination{Name: "user", ChatID: l.ChatID},
		compose.Destination{Name: "admin", ChatID: d.adminID},
	)
	for _, f := range report.Failed() {
		d.metrics.SendFailed(f.Name)
	}
	d.metrics.Published(string(l.Type))

	outcome := archive.Outcome{UserSent: report.OK("user"), AdminSent: report.OK("admin")}
	if report.OK("user") {
		d.reply(ctx, ev.chat(), textPublished, KeyboardNone)
	}
	if d.archive != nil {
		if err := d.archive.Save(ctx, l, outcome); err != nil {
			logger.Warn(ctx, "archive", "save.fail", slog.String("err", err.Error()))
		}
	}

	status := "ok"
	if len(report.Failed()) > 0 {
		status = "fail"
	}
	logger.Info(ctx, "publish", "listing.published",
		slog.String("status", status),
		slog.String("listing_id", l.ID.String()),
		slog.String("listing_type", string(l.Type)),
		slog.Int("photos", len(batch.Images)),
		slog.Bool("user_sent", outcome.UserSent),
		slog.Bool("admin_sent", outcome.AdminSent),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// finish removes the session that produced l, unless a newer one replaced it meanwhile.
func (d *Dispatcher) finish(ctx context.Context, userID int64, l listing.Listing) {
	_, err := d.store.Finish(userID, func(s *listing.Session) error {
		if s.ID != l.SessionID {
			return state.ErrNoSession
		}
		return nil
	})
	if err != nil {
		logger.Debug(ctx, "intake", "session.replaced", slog.String("session_id", l.SessionID.String()))
	}
	d.metrics.SetSessions(d.store.Len())
}

func (d *Dispatcher) update(userID int64, fn func(*listing.Session) (fsm.Transition, error)) (fsm.Transition, error) {
	var tr fsm.Transition
	err := d.store.Update(userID, func(s *listing.Session) error {
		var err error
		tr, err = fn(s)
		return err
	})
	if state.IsNoSession(err) {
		err = listing.ErrNoSession
	}
	return tr, err
}

// rejected turns a failed transition into a corrective prompt, a silent ignore or an error.
func (d *Dispatcher) rejected(ctx context.Context, ev Event, step listing.Step, err error) error {
	switch {
	case listing.IsIgnored(err):
		d.ignored(ctx, ev, err)
		return nil
	case listing.IsValidation(err):
		logger.Info(ctx, "intake", "input.rejected",
			slog.String("status", "rejected"),
			slog.String("step", string(step)),
			slog.String("err_code", string(listing.CodeOf(err))),
		)
		if msg := correction(step); msg != "" {
			d.reply(ctx, ev.chat(), msg, KeyboardNone)
		}
		return nil
	}
	return err
}

func (d *Dispatcher) ignored(ctx context.Context, ev Event, err error) {
	attrs := []slog.Attr{
		slog.String("status", "ignored"),
		slog.String("kind", string(ev.Kind)),
	}
	if step, ok := d.Step(ev.UserID); ok {
		attrs = append(attrs, slog.String("step", string(step)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err_code", string(listing.CodeOf(err))))
	}
	logger.Debug(ctx, "intake", "event.ignored", attrs...)
}

func (d *Dispatcher) transitioned(ctx context.Context, from, to listing.Step, extra ...slog.Attr) {
	d.metrics.Transition(string(from), string(to))
	attrs := append([]slog.Attr{
		slog.String("step", string(from)),
		slog.String("next_step", string(to)),
	}, extra...)
	logger.Info(ctx, "intake", "transition", attrs...)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, kb Keyboard) {
	if text == "" {
		return
	}
	if err := d.sender.SendText(ctx, chatID, text, kb); err != nil {
		logger.Warn(ctx, "intake", "reply.fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}
