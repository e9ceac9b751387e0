package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlcclub/tlcbot/core/telegram/state"
	"github.com/tlcclub/tlcbot/internal/album"
	"github.com/tlcclub/tlcbot/internal/archive"
	"github.com/tlcclub/tlcbot/internal/compose"
	"github.com/tlcclub/tlcbot/internal/fsm"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/media"
)

const adminChat int64 = 1000

type sentText struct {
	ChatID int64
	Text   string
	KB     Keyboard
}

type fakeSender struct {
	mu        sync.Mutex
	texts     []sentText
	batches   map[int64][]compose.Batch
	acks      []string
	failBatch map[int64]error
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID, text, kb})
	return nil
}

func (f *fakeSender) SendImageBatch(_ context.Context, chatID int64, b compose.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batches == nil {
		f.batches = map[int64][]compose.Batch{}
	}
	f.batches[chatID] = append(f.batches[chatID], b)
	return f.failBatch[chatID]
}

func (f *fakeSender) AcknowledgeCallback(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, id)
	return nil
}

func (f *fakeSender) lastText(chatID int64) sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.texts) - 1; i >= 0; i-- {
		if f.texts[i].ChatID == chatID {
			return f.texts[i]
		}
	}
	return sentText{}
}

func (f *fakeSender) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type refResolver struct{}

func (refResolver) Resolve(_ context.Context, userID int64, src *media.PhotoSource) (string, error) {
	if src.FileID == "broken" {
		return "", errors.New("download failed")
	}
	return fmt.Sprintf("%d/%s", userID, src.FileID), nil
}

type refOpener struct{}

func (refOpener) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(ref))), nil
}

type memArchive struct {
	mu    sync.Mutex
	saved []archive.Outcome
}

func (m *memArchive) Save(_ context.Context, _ listing.Listing, out archive.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, out)
	return nil
}

type harness struct {
	d      *Dispatcher
	sender *fakeSender
	arch   *memArchive
	ctx    context.Context
	t      *testing.T
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithOpener(t, refOpener{})
}

func newHarnessWithOpener(t *testing.T, opener compose.Opener) *harness {
	store := state.NewMemoryStore[*listing.Session](listing.NewSession)
	machine := fsm.Default()
	collector := album.New(store, machine, refResolver{}, album.Options{})
	composer := compose.New(opener, compose.Options{})
	sender := &fakeSender{}
	arch := &memArchive{}
	d := New(store, machine, collector, composer, sender, Options{AdminID: adminChat, Archive: arch})
	return &harness{d: d, sender: sender, arch: arch, ctx: context.Background(), t: t}
}

func (h *harness) send(ev Event) {
	h.t.Helper()
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	require.NoError(h.t, h.d.Handle(h.ctx, ev))
}

func (h *harness) command(user int64, cmd string) {
	h.send(Event{Kind: KindCommand, UserID: user, Username: "bob", Command: cmd})
}

func (h *harness) text(user int64, text string) {
	h.send(Event{Kind: KindText, UserID: user, Text: text})
}

func (h *harness) callback(user int64, data string) {
	h.send(Event{Kind: KindCallback, UserID: user, Username: "bob", CallbackID: "cb-" + data, CallbackData: data})
}

func (h *harness) photo(user int64, msgID int, fileID string) {
	h.send(Event{Kind: KindPhoto, UserID: user, MessageID: msgID, AlbumID: "grp",
		Photo: &media.PhotoSource{FileID: fileID}})
}

func (h *harness) step(user int64) listing.Step {
	step, _ := h.d.Step(user)
	return step
}

func TestEndToEndSellListing(t *testing.T) {
	h := newHarness(t)
	const user int64 = 7

	h.command(user, CommandNew)
	assert.Equal(t, listing.StepAwaitType, h.step(user))
	assert.Equal(t, KeyboardType, h.sender.lastText(user).KB)

	h.callback(user, CallbackSell)
	assert.Equal(t, listing.StepAwaitTitle, h.step(user))
	assert.Contains(t, h.sender.acks, "cb-sell")

	h.text(user, "Bike")
	assert.Equal(t, listing.StepAwaitDescription, h.step(user))
	h.text(user, "Red, size M")
	assert.Equal(t, listing.StepAwaitPhotos, h.step(user))

	h.photo(user, 10, "p1")
	h.photo(user, 11, "p2")
	assert.Equal(t, KeyboardDone, h.sender.lastText(user).KB)
	h.callback(user, CallbackDone)
	assert.Equal(t, listing.StepAwaitPrice, h.step(user))

	h.text(user, "1500")

	_, ok := h.d.Step(user)
	assert.False(t, ok, "session removed after publish")

	for _, chat := range []int64{user, adminChat} {
		batches := h.sender.batches[chat]
		require.Len(t, batches, 1, "chat %d", chat)
		images := batches[0].Images
		require.Len(t, images, 2)
		assert.Contains(t, images[0].Caption, "Bike")
		assert.Contains(t, images[0].Caption, "1500")
		assert.Empty(t, images[1].Caption)
		assert.Equal(t, []byte("7/p1"), images[0].Data)
		assert.Equal(t, []byte("7/p2"), images[1].Data)
	}
	require.Len(t, h.arch.saved, 1)
	assert.Equal(t, archive.Outcome{UserSent: true, AdminSent: true}, h.arch.saved[0])
}

// gateOpener holds every photo load until release is closed.
type gateOpener struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateOpener() *gateOpener {
	return &gateOpener{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateOpener) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return refOpener{}.Open(ctx, ref)
}

func (h *harness) fillToPrice(user int64) {
	h.command(user, CommandNew)
	h.callback(user, CallbackSell)
	h.text(user, "Bike")
	h.text(user, "Red, size M")
	h.photo(user, 10, "p1")
	h.callback(user, CallbackDone)
	require.Equal(h.t, listing.StepAwaitPrice, h.step(user))
}

func TestStartWhilePublishingCreatesFreshSession(t *testing.T) {
	gate := newGateOpener()
	h := newHarnessWithOpener(t, gate)
	const user int64 = 7
	h.fillToPrice(user)

	published := make(chan error, 1)
	go func() {
		published <- h.d.Handle(h.ctx, Event{Kind: KindText, UserID: user, ChatID: user, Text: "1500"})
	}()
	<-gate.entered
	assert.Equal(t, listing.StepDone, h.step(user))

	h.command(user, CommandNew)
	assert.Equal(t, listing.StepAwaitType, h.step(user))

	h.text(user, "cancel")
	assert.Equal(t, listing.StepIdle, h.step(user))
	h.command(user, CommandStart)

	close(gate.release)
	require.NoError(t, <-published)

	assert.Equal(t, listing.StepAwaitType, h.step(user), "publish must not remove the newer session")
	require.Len(t, h.sender.batches[user], 1)
	assert.Contains(t, h.sender.batches[adminChat][0].Caption(), "Bike")
}

func TestCancelWhilePublishingIsNoop(t *testing.T) {
	gate := newGateOpener()
	h := newHarnessWithOpener(t, gate)
	const user int64 = 7
	h.fillToPrice(user)

	published := make(chan error, 1)
	go func() {
		published <- h.d.Handle(h.ctx, Event{Kind: KindText, UserID: user, ChatID: user, Text: "1500"})
	}()
	<-gate.entered

	h.command(user, CommandCancel)
	assert.Equal(t, listing.StepDone, h.step(user))

	close(gate.release)
	require.NoError(t, <-published)
	_, ok := h.d.Step(user)
	assert.False(t, ok)
	assert.Len(t, h.sender.batches[user], 1)
}

func TestConcurrentStartsFromIdleLeaveOneSession(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.d.Handle(h.ctx, Event{Kind: KindCommand, UserID: 7, ChatID: 7, Command: CommandStart}))
		}()
	}
	wg.Wait()
	assert.Equal(t, listing.StepAwaitType, h.step(7))
	assert.Equal(t, 1, h.d.ActiveSessions())
}

func TestWrongStepInputIgnored(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandNew)

	before := h.sender.textCount()
	h.text(7, "abc")
	assert.Equal(t, listing.StepAwaitType, h.step(7))
	assert.Equal(t, before, h.sender.textCount(), "ignored events get no reply")

	h.callback(7, CallbackSell)
	h.callback(7, CallbackDone)
	assert.Equal(t, listing.StepAwaitTitle, h.step(7))

	h.photo(7, 1, "p")
	assert.Equal(t, listing.StepAwaitTitle, h.step(7))
}

func TestNonDigitPriceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandStart)
	h.callback(7, CallbackBuy)
	h.text(7, "Lamp")
	h.text(7, "Desk lamp")
	h.photo(7, 1, "p1")
	h.callback(7, CallbackDone)

	for i := 0; i < 3; i++ {
		h.text(7, "abc")
		assert.Equal(t, listing.StepAwaitPrice, h.step(7))
		assert.Equal(t, textBadPrice, h.sender.lastText(7).Text)
	}
	assert.Empty(t, h.sender.batches)

	h.text(7, "200")
	_, ok := h.d.Step(7)
	assert.False(t, ok)
	assert.Len(t, h.sender.batches[7], 1)
	assert.Contains(t, h.sender.batches[adminChat][0].Caption(), "Покупатель")
}

func TestCancelFromAnyStepThenNoop(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandNew)
	h.callback(7, CallbackSell)
	h.text(7, "Bike")

	h.command(7, CommandCancel)
	_, ok := h.d.Step(7)
	assert.False(t, ok)
	last := h.sender.lastText(7)
	assert.Equal(t, textCancelled, last.Text)
	assert.Equal(t, KeyboardRemove, last.KB)

	before := h.sender.textCount()
	h.command(7, CommandCancel)
	h.text(7, "Отмена")
	assert.Equal(t, before, h.sender.textCount(), "cancel without a session is silent")
}

func TestCancelByText(t *testing.T) {
	for _, word := range []string{"cancel", "CANCEL", "отмена", "Отмена"} {
		h := newHarness(t)
		h.command(7, CommandNew)
		h.callback(7, CallbackSell)
		h.text(7, word)
		_, ok := h.d.Step(7)
		assert.False(t, ok, word)
	}
}

func TestRestartDiscardsPriorData(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandNew)
	h.callback(7, CallbackSell)
	h.text(7, "Bike")
	h.text(7, "Old description")
	h.photo(7, 1, "old")

	h.command(7, CommandStart)
	assert.Equal(t, listing.StepAwaitType, h.step(7))

	s, ok := h.d.store.Get(7)
	require.True(t, ok)
	assert.Empty(t, s.Title)
	assert.Empty(t, s.Description)
	assert.Empty(t, s.Album.Slots)
	assert.Empty(t, s.Type)
}

func TestEmptyAlbumDoneRejected(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandNew)
	h.callback(7, CallbackSell)
	h.text(7, "Bike")
	h.text(7, "desc")

	h.callback(7, CallbackDone)
	assert.Equal(t, listing.StepAwaitPhotos, h.step(7))
	assert.Equal(t, textNoPhotos, h.sender.lastText(7).Text)
}

func TestBrokenPhotoSkippedSessionContinues(t *testing.T) {
	h := newHarness(t)
	h.command(7, CommandNew)
	h.callback(7, CallbackSell)
	h.text(7, "Bike")
	h.text(7, "desc")

	h.photo(7, 1, "broken")
	assert.Equal(t, textPhotoFailed, h.sender.lastText(7).Text)
	h.photo(7, 2, "ok")
	h.callback(7, CallbackDone)
	h.text(7, "10")

	require.Len(t, h.sender.batches[7], 1)
	assert.Len(t, h.sender.batches[7][0].Images, 1)
}

func TestAdminSendFailureDoesNotAffectUser(t *testing.T) {
	h := newHarness(t)
	h.sender.failBatch = map[int64]error{adminChat: errors.New("chat not found")}
	h.command(7, CommandNew)
	h.callback(7, CallbackSell)
	h.text(7, "Bike")
	h.text(7, "desc")
	h.photo(7, 1, "p")
	h.callback(7, CallbackDone)
	h.text(7, "10")

	_, ok := h.d.Step(7)
	assert.False(t, ok)
	assert.Len(t, h.sender.batches[7], 1)
	require.Len(t, h.arch.saved, 1)
	assert.Equal(t, archive.Outcome{UserSent: true, AdminSent: false}, h.arch.saved[0])
	assert.Equal(t, textPublished, h.sender.lastText(7).Text)
}

func TestInterleavedUsersKeepTheirOwnPhotos(t *testing.T) {
	h := newHarness(t)
	users := []int64{1, 2, 3}
	for _, u := range users {
		h.command(u, CommandNew)
		h.callback(u, CallbackSell)
		h.text(u, fmt.Sprintf("Item %d", u))
		h.text(u, "desc")
	}

	var wg sync.WaitGroup
	for _, u := range users {
		for i := 1; i <= 4; i++ {
			wg.Add(1)
			go func(u int64, i int) {
				defer wg.Done()
				assert.NoError(t, h.d.Handle(h.ctx, Event{
					Kind: KindPhoto, UserID: u, ChatID: u, MessageID: i, AlbumID: fmt.Sprint("g", u),
					Photo: &media.PhotoSource{FileID: fmt.Sprintf("u%d-p%d", u, i)},
				}))
			}(u, i)
		}
	}
	wg.Wait()

	for _, u := range users {
		h.callback(u, CallbackDone)
		h.text(u, "100")
		batches := h.sender.batches[u]
		require.Len(t, batches, 1)
		require.Len(t, batches[0].Images, 4)
		for i, img := range batches[0].Images {
			assert.Equal(t, fmt.Sprintf("%d/u%d-p%d", u, u, i+1), img.Ref)
		}
		assert.Contains(t, batches[0].Caption(), fmt.Sprintf("Item %d", u))
	}
	assert.Len(t, h.sender.batches[adminChat], len(users))
}

func TestUnknownCommandIgnored(t *testing.T) {
	h := newHarness(t)
	h.command(7, "help")
	_, ok := h.d.Step(7)
	assert.False(t, ok)
	assert.Zero(t, h.sender.textCount())
}
