package listing

import (
	"maps"
	"slices"
)

// Slot is one reserved album position. Seq is the chat message id the photo arrived in;
// slots are ordered by (Seq, order) when the album is sealed.
type Slot struct {
	Seq     int
	Ref     string
	Filled  bool
	Skipped bool

	order int
}

// Album accumulates photo references for a session while its step is StepAwaitPhotos.
// A slot is reserved when a photo event arrives and filled once the media is resolved,
// so resolution may run without holding the session lock.
type Album struct {
	Slots []Slot
	// Prompted records media groups the user was already asked to press Done for.
	Prompted map[string]bool

	pending int
	drained chan struct{}
	next    int
}

// Clone copies slots and prompts. The drain signal is shared with the original.
func (a *Album) Clone() *Album {
	if a == nil {
		return nil
	}
	c := *a
	c.Slots = slices.Clone(a.Slots)
	c.Prompted = maps.Clone(a.Prompted)
	return &c
}

// Reserve appends an unresolved slot and returns its index.
func (a *Album) Reserve(seq int) int {
	if a.pending == 0 {
		a.drained = make(chan struct{})
	}
	a.pending++
	a.Slots = append(a.Slots, Slot{Seq: seq, order: a.next})
	a.next++
	return len(a.Slots) - 1
}

// Fill resolves the slot at idx. An empty ref marks it skipped.
func (a *Album) Fill(idx int, ref string) {
	if idx < 0 || idx >= len(a.Slots) || a.Slots[idx].Filled || a.Slots[idx].Skipped {
		return
	}
	if ref == "" {
		a.Slots[idx].Skipped = true
	} else {
		a.Slots[idx].Ref = ref
		a.Slots[idx].Filled = true
	}
	a.pending--
	if a.pending == 0 && a.drained != nil {
		close(a.drained)
		a.drained = nil
	}
}

// Pending reports slots still waiting for resolution.
func (a *Album) Pending() int {
	return a.pending
}

// Drained returns a channel closed when the current pending slots are all resolved,
// or nil when nothing is pending.
func (a *Album) Drained() <-chan struct{} {
	if a.pending == 0 {
		return nil
	}
	return a.drained
}

// Live counts slots that are resolved or still pending, excluding skipped ones.
func (a *Album) Live() int {
	n := 0
	for _, s := range a.Slots {
		if !s.Skipped {
			n++
		}
	}
	return n
}

// Refs returns resolved references ordered by arrival.
func (a *Album) Refs() []string {
	ordered := slices.Clone(a.Slots)
	slices.SortStableFunc(ordered, func(x, y Slot) int {
		if x.Seq != y.Seq {
			return x.Seq - y.Seq
		}
		return x.order - y.order
	})
	refs := make([]string, 0, len(ordered))
	for _, s := range ordered {
		if s.Filled {
			refs = append(refs, s.Ref)
		}
	}
	return refs
}

// MarkPrompted records that the Done prompt was sent for group and reports whether it was new.
func (a *Album) MarkPrompted(group string) bool {
	if a.Prompted == nil {
		a.Prompted = make(map[string]bool)
	}
	if a.Prompted[group] {
		return false
	}
	a.Prompted[group] = true
	return true
}
