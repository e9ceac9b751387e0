package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlcclub/tlcbot/internal/listing"
)

func TestHappyPathWalksStepsForward(t *testing.T) {
	m := Default()
	s := listing.NewSession(7)

	steps := []struct {
		in   Input
		want listing.Step
	}{
		{Input{Kind: EventTypeSelected, Type: "sell", Author: listing.Author{ID: 7, Username: "bob"}}, listing.StepAwaitTitle},
		{Input{Kind: EventText, Text: "Bike"}, listing.StepAwaitDescription},
		{Input{Kind: EventText, Text: "Red, size M"}, listing.StepAwaitPhotos},
	}
	for _, st := range steps {
		_, err := m.Step(s, st.in)
		require.NoError(t, err)
		assert.Equal(t, st.want, s.Step)
	}

	s.Album.Fill(s.Album.Reserve(1), "p1")
	tr, err := m.Step(s, Input{Kind: EventPhotosDone})
	require.NoError(t, err)
	assert.Equal(t, EffectSeal, tr.Effect)
	assert.Equal(t, []string{"p1"}, s.Photos)

	tr, err = m.Step(s, Input{Kind: EventText, Text: "1500"})
	require.NoError(t, err)
	assert.Equal(t, EffectPublish, tr.Effect)
	assert.Equal(t, listing.StepDone, s.Step)
	assert.Equal(t, "1500", s.Price)
	assert.Equal(t, listing.TypeSell, s.Type)
	assert.Equal(t, "Bike", s.Title)
	assert.Equal(t, "bob", s.Author.Username)
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	m := Default()
	cases := []struct {
		step listing.Step
		kind EventKind
	}{
		{listing.StepAwaitType, EventText},
		{listing.StepAwaitType, EventPhoto},
		{listing.StepAwaitTitle, EventPhotosDone},
		{listing.StepAwaitTitle, EventTypeSelected},
		{listing.StepAwaitPhotos, EventText},
		{listing.StepAwaitPrice, EventPhoto},
		{listing.StepIdle, EventCancel},
		{listing.StepIdle, EventText},
	}
	for _, c := range cases {
		s := listing.NewSession(1)
		s.Step = c.step
		_, err := m.Step(s, Input{Kind: c.kind, Text: "abc", Type: "sell", HasImage: true})
		require.Error(t, err, "%s/%s", c.step, c.kind)
		assert.True(t, listing.IsIgnored(err))
		assert.Equal(t, c.step, s.Step)
	}
}

func TestValidationLeavesSessionUntouched(t *testing.T) {
	m := Default()

	s := listing.NewSession(1)
	s.Step = listing.StepAwaitPrice
	for _, bad := range []string{"abc", "", "15.5", "-1", "1 000"} {
		_, err := m.Step(s, Input{Kind: EventText, Text: bad})
		require.Error(t, err)
		assert.True(t, listing.IsValidation(err))
		assert.Equal(t, listing.StepAwaitPrice, s.Step)
		assert.Empty(t, s.Price)
	}

	s.Step = listing.StepAwaitTitle
	_, err := m.Step(s, Input{Kind: EventText, Text: "   "})
	assert.True(t, listing.IsValidation(err))
	assert.Equal(t, listing.StepAwaitTitle, s.Step)

	s.Step = listing.StepAwaitType
	_, err = m.Step(s, Input{Kind: EventTypeSelected, Type: "rent"})
	assert.True(t, listing.IsValidation(err))
	assert.Empty(t, s.Type)
}

func TestSealRejectsEmptyAlbum(t *testing.T) {
	m := Default()
	s := listing.NewSession(1)
	s.Step = listing.StepAwaitPhotos

	_, err := m.Step(s, Input{Kind: EventPhotosDone})
	assert.True(t, listing.HasCode(err, listing.CodeAlbumEmpty))
	assert.Equal(t, listing.StepAwaitPhotos, s.Step)

	idx := s.Album.Reserve(1)
	_, err = m.Step(s, Input{Kind: EventPhotosDone})
	require.Error(t, err, "pending slots block sealing")

	s.Album.Fill(idx, "p")
	_, err = m.Step(s, Input{Kind: EventPhotosDone})
	require.NoError(t, err)
	assert.True(t, s.Sealed())
}

func TestPhotoWithoutImageRejected(t *testing.T) {
	m := Default()
	s := listing.NewSession(1)
	s.Step = listing.StepAwaitPhotos
	_, err := m.Step(s, Input{Kind: EventPhoto})
	assert.True(t, listing.IsValidation(err))

	tr, err := m.Step(s, Input{Kind: EventPhoto, HasImage: true})
	require.NoError(t, err)
	assert.Equal(t, EffectCollect, tr.Effect)
	assert.Equal(t, listing.StepAwaitPhotos, s.Step)
}

func TestCancelFromEveryActiveStep(t *testing.T) {
	m := Default()
	for _, step := range listing.Steps {
		tr, err := m.Lookup(step, EventCancel)
		switch step {
		case listing.StepIdle, listing.StepDone:
			assert.True(t, listing.IsIgnored(err), step)
		default:
			require.NoError(t, err, step)
			assert.Equal(t, EffectDestroy, tr.Effect)
			assert.Equal(t, listing.StepIdle, tr.To)
		}
	}
}

func TestStartFromAnyStep(t *testing.T) {
	m := Default()
	for _, step := range listing.Steps {
		tr, err := m.Lookup(step, EventStart)
		require.NoError(t, err, step)
		assert.Equal(t, EffectCreate, tr.Effect)
		assert.Equal(t, listing.StepAwaitType, tr.To)
	}
}

func TestStepsOnlyMoveForward(t *testing.T) {
	for _, tr := range Default().transitions() {
		if tr.Effect == EffectDestroy || tr.Effect == EffectCreate {
			continue
		}
		assert.GreaterOrEqual(t, tr.To.Index(), tr.From.Index(), "%s --%s--> %s", tr.From, tr.On, tr.To)
	}
}
