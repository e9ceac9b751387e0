// Package fsm is the listing conversation state machine. Every legal move is a row
// in an explicit transition table keyed by (step, event kind); anything else is ignored.
package fsm

import (
	"strings"

	"github.com/tlcclub/tlcbot/internal/listing"
)

// EventKind is the shape of an inbound event as far as the machine is concerned.
type EventKind string

const (
	EventStart        EventKind = "start"
	EventTypeSelected EventKind = "type_selected"
	EventText         EventKind = "text"
	EventPhoto        EventKind = "photo"
	EventPhotosDone   EventKind = "photos_done"
	EventCancel       EventKind = "cancel"
)

// Effect names the side effect the caller performs around a transition.
type Effect string

const (
	EffectNone    Effect = ""
	EffectCreate  Effect = "create"
	EffectCollect Effect = "collect"
	EffectSeal    Effect = "seal"
	EffectPublish Effect = "publish"
	EffectDestroy Effect = "destroy"
)

// Input is the event payload a transition validates and applies.
type Input struct {
	Kind   EventKind
	Text   string
	Type   string
	Author listing.Author
	// HasImage is false for photo events that carry no usable image.
	HasImage bool
}

// Transition is one row of the table.
type Transition struct {
	From     listing.Step
	On       EventKind
	To       listing.Step
	Effect   Effect
	Validate func(s *listing.Session, in Input) error
	Apply    func(s *listing.Session, in Input)
}

type key struct {
	from listing.Step
	on   EventKind
}

// Machine resolves and applies transitions.
type Machine struct {
	rows map[key]Transition
}

// New builds a machine from table. A later row for the same (From, On) replaces an earlier one.
func New(table []Transition) *Machine {
	m := &Machine{rows: make(map[key]Transition, len(table))}
	for _, tr := range table {
		m.rows[key{tr.From, tr.On}] = tr
	}
	return m
}

// Default returns a machine over DefaultTable.
func Default() *Machine {
	return New(DefaultTable())
}

// Lookup finds the row for (from, on). Missing rows yield a CodeTransitionIgnored error.
func (m *Machine) Lookup(from listing.Step, on EventKind) (Transition, error) {
	tr, ok := m.rows[key{from, on}]
	if !ok {
		return Transition{}, listing.New(listing.CodeTransitionIgnored, "no transition",
			"step", from, "event", on)
	}
	return tr, nil
}

// Enter validates in against tr and, when accepted, applies it and moves s to tr.To.
// A rejected input leaves s untouched.
func (m *Machine) Enter(tr Transition, s *listing.Session, in Input) error {
	if tr.Validate != nil {
		if err := tr.Validate(s, in); err != nil {
			return err
		}
	}
	if tr.Apply != nil {
		tr.Apply(s, in)
	}
	s.Step = tr.To
	return nil
}

// Step fires in against the session's current step.
func (m *Machine) Step(s *listing.Session, in Input) (Transition, error) {
	tr, err := m.Lookup(s.Step, in.Kind)
	if err != nil {
		return tr, err
	}
	if err := m.Enter(tr, s, in); err != nil {
		return tr, err
	}
	return tr, nil
}

func (m *Machine) transitions() []Transition {
	out := make([]Transition, 0, len(m.rows))
	for _, tr := range m.rows {
		out = append(out, tr)
	}
	return out
}

// DefaultTable is the listing conversation.
//
//	any           --start-->         await_type        create
//	await_type    --type_selected--> await_title
//	await_title   --text-->          await_description
//	await_desc    --text-->          await_photos
//	await_photos  --photo-->         await_photos      collect
//	await_photos  --photos_done-->   await_price       seal
//	await_price   --text-->          done              publish
//	not idle|done --cancel-->        idle              destroy
func DefaultTable() []Transition {
	table := []Transition{
		{
			From: listing.StepAwaitType, On: EventTypeSelected, To: listing.StepAwaitTitle,
			Validate: validateType,
			Apply: func(s *listing.Session, in Input) {
				t, _ := listing.ParseType(in.Type)
				s.Type = t
				if in.Author.ID != 0 {
					s.Author = in.Author
					s.UserID = in.Author.ID
				}
			},
		},
		{
			From: listing.StepAwaitTitle, On: EventText, To: listing.StepAwaitDescription,
			Validate: requireText("title"),
			Apply:    func(s *listing.Session, in Input) { s.Title = in.Text },
		},
		{
			From: listing.StepAwaitDescription, On: EventText, To: listing.StepAwaitPhotos,
			Validate: requireText("description"),
			Apply:    func(s *listing.Session, in Input) { s.Description = in.Text },
		},
		{
			From: listing.StepAwaitPhotos, On: EventPhoto, To: listing.StepAwaitPhotos,
			Effect:   EffectCollect,
			Validate: validatePhoto,
		},
		{
			From: listing.StepAwaitPhotos, On: EventPhotosDone, To: listing.StepAwaitPrice,
			Effect:   EffectSeal,
			Validate: validateSeal,
			Apply:    func(s *listing.Session, _ Input) { s.Photos = s.Album.Refs() },
		},
		{
			From: listing.StepAwaitPrice, On: EventText, To: listing.StepDone,
			Effect:   EffectPublish,
			Validate: validatePrice,
			Apply:    func(s *listing.Session, in Input) { s.Price = strings.TrimSpace(in.Text) },
		},
	}

	// done behaves like idle while the listing is being published: start replaces
	// the finished session, cancel has nothing to destroy.
	for _, from := range listing.Steps {
		table = append(table, Transition{
			From: from, On: EventStart, To: listing.StepAwaitType,
			Effect: EffectCreate,
			Apply: func(s *listing.Session, in Input) {
				if in.Author.ID != 0 {
					s.Author = in.Author
				}
			},
		})
		if from != listing.StepIdle && from != listing.StepDone {
			table = append(table, Transition{
				From: from, On: EventCancel, To: listing.StepIdle, Effect: EffectDestroy,
			})
		}
	}
	return table
}

func validateType(_ *listing.Session, in Input) error {
	if _, ok := listing.ParseType(in.Type); !ok {
		return listing.New(listing.CodeValidationInvalid, "unknown listing type", "type", in.Type)
	}
	return nil
}

func requireText(field string) func(*listing.Session, Input) error {
	return func(_ *listing.Session, in Input) error {
		if strings.TrimSpace(in.Text) == "" {
			return listing.New(listing.CodeValidationInvalid, field+" must not be empty", "field", field)
		}
		return nil
	}
}

func validatePhoto(_ *listing.Session, in Input) error {
	if !in.HasImage {
		return listing.New(listing.CodeValidationInvalid, "photo event carries no image")
	}
	return nil
}

func validateSeal(s *listing.Session, _ Input) error {
	if s.Album.Pending() > 0 {
		return listing.New(listing.CodeValidationInvalid, "photos still resolving", "pending", s.Album.Pending())
	}
	if len(s.Album.Refs()) == 0 {
		return listing.New(listing.CodeAlbumEmpty, "no photos collected")
	}
	return nil
}

func validatePrice(_ *listing.Session, in Input) error {
	if !listing.IsDigits(strings.TrimSpace(in.Text)) {
		return listing.New(listing.CodeValidationInvalid, "price must contain digits only", "price", in.Text)
	}
	return nil
}
