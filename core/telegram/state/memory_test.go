package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	user  int64
	n     int
	notes []string
}

func (c *counter) Clone() *counter {
	cp := *c
	cp.notes = append([]string(nil), c.notes...)
	return &cp
}

func newCounterStore() *Store[*counter] {
	return NewMemoryStore[*counter](func(userID int64) *counter { return &counter{user: userID} })
}

func TestCreateDiscardsPreviousSession(t *testing.T) {
	s := newCounterStore()
	s.Create(1)
	require.NoError(t, s.Update(1, func(c *counter) error { c.n = 5; return nil }))

	fresh := s.Create(1)
	assert.Equal(t, 0, fresh.n)

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 0, got.n)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateWithoutSession(t *testing.T) {
	s := newCounterStore()
	err := s.Update(7, func(*counter) error { return nil })
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUpdatePropagatesError(t *testing.T) {
	s := newCounterStore()
	s.Create(1)
	boom := errors.New("boom")
	err := s.Update(1, func(c *counter) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	s := newCounterStore()
	s.Create(1)
	require.NoError(t, s.Update(1, func(c *counter) error {
		c.notes = append(c.notes, "a")
		return nil
	}))
	snap, _ := s.Get(1)
	snap.notes[0] = "mutated"

	again, _ := s.Get(1)
	assert.Equal(t, "a", again.notes[0])
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newCounterStore()
	s.Create(1)
	assert.True(t, s.Remove(1))
	assert.False(t, s.Remove(1))
	assert.False(t, s.Remove(2))
	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestFinishRemovesOnSuccess(t *testing.T) {
	s := newCounterStore()
	s.Create(1)

	_, err := s.Finish(1, func(c *counter) error { return errors.New("invalid") })
	require.Error(t, err)
	_, ok := s.Get(1)
	assert.True(t, ok, "failed finish keeps the session")

	final, err := s.Finish(1, func(c *counter) error { c.n = 3; return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, final.n)
	assert.Equal(t, 0, s.Len())

	_, err = s.Finish(1, func(*counter) error { return nil })
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestGetOrCreate(t *testing.T) {
	s := newCounterStore()
	first := s.GetOrCreate(3)
	assert.Equal(t, int64(3), first.user)
	require.NoError(t, s.Update(3, func(c *counter) error { c.n++; return nil }))
	second := s.GetOrCreate(3)
	assert.Equal(t, 1, second.n)
}

func TestConcurrentUpdatesSerializePerUser(t *testing.T) {
	s := newCounterStore()
	s.Create(1)
	s.Create(2)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Update(1, func(c *counter) error { c.n++; return nil })
		}()
		go func() {
			defer wg.Done()
			_ = s.Update(2, func(c *counter) error { c.n += 2; return nil })
		}()
	}
	wg.Wait()

	a, _ := s.Get(1)
	b, _ := s.Get(2)
	assert.Equal(t, 200, a.n)
	assert.Equal(t, 400, b.n)
}

func TestUpdateBlockedByCreateSeesNoSession(t *testing.T) {
	s := newCounterStore()
	s.Create(1)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Update(1, func(c *counter) error {
			close(entered)
			<-release
			c.n = 99
			return nil
		})
	}()
	<-entered

	// Create swaps the entry right away and then waits on the old lock to mark it removed.
	created := make(chan struct{})
	go func() {
		s.Create(1)
		close(created)
	}()
	close(release)
	require.NoError(t, <-done)
	<-created

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 0, got.n, "write to the discarded session must not leak")

	err := s.Update(1, func(c *counter) error { return nil })
	assert.NoError(t, err)
}
