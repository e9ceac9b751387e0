package album

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlcclub/tlcbot/core/telegram/state"
	"github.com/tlcclub/tlcbot/internal/fsm"
	"github.com/tlcclub/tlcbot/internal/listing"
	"github.com/tlcclub/tlcbot/internal/media"
)

type fakeResolver struct {
	delays map[string]time.Duration
	fail   map[string]bool
	gate   map[string]chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, userID int64, src *media.PhotoSource) (string, error) {
	if g, ok := f.gate[src.FileID]; ok {
		select {
		case <-g:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if d := f.delays[src.FileID]; d > 0 {
		time.Sleep(d)
	}
	if f.fail[src.FileID] {
		return "", errors.New("download failed")
	}
	return fmt.Sprintf("%d/%s", userID, src.FileID), nil
}

func newStore() *state.Store[*listing.Session] {
	return state.NewMemoryStore[*listing.Session](listing.NewSession)
}

func atPhotos(t *testing.T, store *state.Store[*listing.Session], userID int64) {
	t.Helper()
	store.Create(userID)
	require.NoError(t, store.Update(userID, func(s *listing.Session) error {
		s.Step = listing.StepAwaitPhotos
		return nil
	}))
}

func photo(userID int64, seq int, id string) Photo {
	return Photo{UserID: userID, Seq: seq, Group: "g", Source: &media.PhotoSource{FileID: id}}
}

func TestOrderPreservedWhenResolutionFinishesOutOfOrder(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	r := &fakeResolver{delays: map[string]time.Duration{
		"p1": 60 * time.Millisecond,
		"p2": 30 * time.Millisecond,
		"p3": 0,
	}}
	c := New(store, fsm.Default(), r, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, id := range []string{"p1", "p2", "p3"} {
		wg.Add(1)
		go func(seq int, id string) {
			defer wg.Done()
			_, err := c.Add(ctx, photo(1, seq, id))
			assert.NoError(t, err)
		}(100+i, id)
		// stagger arrival so reservations happen in message order
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	photos, err := c.Seal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/p1", "1/p2", "1/p3"}, photos)

	s, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, listing.StepAwaitPrice, s.Step)
}

func TestSealWaitsForInFlightPhotos(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	gate := make(chan struct{})
	r := &fakeResolver{gate: map[string]chan struct{}{"slow": gate}}
	c := New(store, fsm.Default(), r, Options{})
	ctx := context.Background()

	_, err := c.Add(ctx, photo(1, 1, "fast"))
	require.NoError(t, err)

	added := make(chan struct{})
	go func() {
		_, _ = c.Add(ctx, photo(1, 2, "slow"))
		close(added)
	}()
	require.Eventually(t, func() bool {
		s, _ := store.Get(1)
		return s.Album.Pending() == 1
	}, time.Second, 5*time.Millisecond)

	sealed := make(chan []string, 1)
	go func() {
		photos, err := c.Seal(ctx, 1)
		assert.NoError(t, err)
		sealed <- photos
	}()

	select {
	case <-sealed:
		t.Fatal("sealed before the slow photo resolved")
	case <-time.After(30 * time.Millisecond):
	}
	close(gate)
	<-added

	select {
	case photos := <-sealed:
		assert.Equal(t, []string{"1/fast", "1/slow"}, photos)
	case <-time.After(time.Second):
		t.Fatal("seal did not finish")
	}
}

func TestFailedPhotoIsSkipped(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	r := &fakeResolver{fail: map[string]bool{"bad": true}}
	c := New(store, fsm.Default(), r, Options{})
	ctx := context.Background()

	res, err := c.Add(ctx, photo(1, 1, "bad"))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Prompt)

	res, err = c.Add(ctx, photo(1, 2, "good"))
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.True(t, res.Prompt)

	photos, err := c.Seal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/good"}, photos)
}

func TestPromptOncePerGroup(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	c := New(store, fsm.Default(), &fakeResolver{}, Options{})
	ctx := context.Background()

	first, _ := c.Add(ctx, photo(1, 1, "a"))
	second, _ := c.Add(ctx, photo(1, 2, "b"))
	single, _ := c.Add(ctx, Photo{UserID: 1, Seq: 3, Source: &media.PhotoSource{FileID: "c"}})

	assert.True(t, first.Prompt)
	assert.False(t, second.Prompt)
	assert.True(t, single.Prompt)
}

func TestLateResultAfterCancelIsDropped(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	gate := make(chan struct{})
	c := New(store, fsm.Default(), &fakeResolver{gate: map[string]chan struct{}{"p": gate}}, Options{})

	done := make(chan Result, 1)
	go func() {
		res, err := c.Add(context.Background(), photo(1, 1, "p"))
		assert.NoError(t, err)
		done <- res
	}()
	require.Eventually(t, func() bool {
		s, ok := store.Get(1)
		return ok && s.Album.Pending() == 1
	}, time.Second, 5*time.Millisecond)

	store.Remove(1)
	close(gate)
	res := <-done
	assert.True(t, res.Stale)

	_, ok := store.Get(1)
	assert.False(t, ok, "late photo must not resurrect the session")
}

func TestLateResultAfterRestartIsDropped(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	gate := make(chan struct{})
	c := New(store, fsm.Default(), &fakeResolver{gate: map[string]chan struct{}{"old": gate}}, Options{})

	done := make(chan Result, 1)
	go func() {
		res, _ := c.Add(context.Background(), photo(1, 1, "old"))
		done <- res
	}()
	require.Eventually(t, func() bool {
		s, ok := store.Get(1)
		return ok && s.Album.Pending() == 1
	}, time.Second, 5*time.Millisecond)

	atPhotos(t, store, 1)
	close(gate)
	assert.True(t, (<-done).Stale)

	s, _ := store.Get(1)
	assert.Empty(t, s.Album.Slots)
}

func TestLateResultAfterSealIsDropped(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	gate := make(chan struct{})
	c := New(store, fsm.Default(), &fakeResolver{gate: map[string]chan struct{}{"late": gate}}, Options{})

	done := make(chan Result, 1)
	go func() {
		res, _ := c.Add(context.Background(), photo(1, 1, "late"))
		done <- res
	}()
	require.Eventually(t, func() bool {
		s, ok := store.Get(1)
		return ok && s.Album.Pending() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Update(1, func(s *listing.Session) error {
		s.Step = listing.StepAwaitPrice
		return nil
	}))
	close(gate)
	assert.True(t, (<-done).Stale)

	s, _ := store.Get(1)
	assert.Empty(t, s.Album.Refs())
}

func TestAlbumCap(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	c := New(store, fsm.Default(), &fakeResolver{}, Options{MaxPhotos: 2})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := c.Add(ctx, photo(1, i, fmt.Sprint("p", i)))
		require.NoError(t, err)
	}
	res, err := c.Add(ctx, photo(1, 3, "p3"))
	assert.True(t, listing.HasCode(err, listing.CodeAlbumFull))
	assert.True(t, res.Notify)

	res, err = c.Add(ctx, photo(1, 4, "p4"))
	assert.True(t, listing.HasCode(err, listing.CodeAlbumFull))
	assert.False(t, res.Notify)

	photos, err := c.Seal(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, photos, 2)
}

func TestPhotoOutsidePhotoStepIgnored(t *testing.T) {
	store := newStore()
	store.Create(1)
	c := New(store, fsm.Default(), &fakeResolver{}, Options{})

	_, err := c.Add(context.Background(), photo(1, 1, "p"))
	assert.True(t, listing.IsIgnored(err))

	_, err = c.Add(context.Background(), photo(2, 1, "p"))
	assert.True(t, listing.IsIgnored(err), "no session")

	_, err = c.Seal(context.Background(), 2)
	assert.True(t, listing.IsIgnored(err))
}

func TestSealEmptyAlbumRejected(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	c := New(store, fsm.Default(), &fakeResolver{}, Options{})

	_, err := c.Seal(context.Background(), 1)
	assert.True(t, listing.HasCode(err, listing.CodeAlbumEmpty))
	s, _ := store.Get(1)
	assert.Equal(t, listing.StepAwaitPhotos, s.Step)
}

func TestInterleavedUsersDoNotMix(t *testing.T) {
	store := newStore()
	atPhotos(t, store, 1)
	atPhotos(t, store, 2)
	c := New(store, fsm.Default(), &fakeResolver{}, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, uid := range []int64{1, 2} {
			wg.Add(1)
			go func(uid int64, seq int) {
				defer wg.Done()
				_, err := c.Add(ctx, photo(uid, seq, fmt.Sprintf("u%d-%d", uid, seq)))
				assert.NoError(t, err)
			}(uid, i)
		}
	}
	wg.Wait()

	for _, uid := range []int64{1, 2} {
		photos, err := c.Seal(ctx, uid)
		require.NoError(t, err)
		require.Len(t, photos, 5)
		for i, ref := range photos {
			assert.Equal(t, fmt.Sprintf("%d/u%d-%d", uid, uid, i), ref)
		}
	}
}
