// Package listing holds the classifieds intake domain: the per-user Session,
// the fixed step sequence and the finished Listing snapshot.
package listing

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Step is a position in the fixed conversation sequence.
type Step string

const (
	StepIdle             Step = "idle"
	StepAwaitType        Step = "await_type"
	StepAwaitTitle       Step = "await_title"
	StepAwaitDescription Step = "await_description"
	StepAwaitPhotos      Step = "await_photos"
	StepAwaitPrice       Step = "await_price"
	StepDone             Step = "done"
)

// Steps lists every step in forward order.
var Steps = []Step{
	StepIdle,
	StepAwaitType,
	StepAwaitTitle,
	StepAwaitDescription,
	StepAwaitPhotos,
	StepAwaitPrice,
	StepDone,
}

// Index returns the position of s in Steps, or -1.
func (s Step) Index() int {
	return slices.Index(Steps, s)
}

// Type tags a listing as an offer or a request.
type Type string

const (
	TypeSell Type = "sell"
	TypeBuy  Type = "buy"
)

// ParseType recognizes a type tag, ignoring case and surrounding space.
func ParseType(raw string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeSell:
		return TypeSell, true
	case TypeBuy:
		return TypeBuy, true
	}
	return "", false
}

// Author is the presentable identity of the submitting user.
type Author struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName prefers the username, then the first name.
func (a Author) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	if a.FirstName != "" {
		return a.FirstName
	}
	return "user"
}

// Session is the in-progress state for one user's listing submission.
type Session struct {
	ID          uuid.UUID
	UserID      int64
	ChatID      int64
	Step        Step
	Type        Type
	Author      Author
	Title       string
	Description string
	// Photos holds resolved media references in arrival order. It is sealed once Step passes StepAwaitPhotos.
	Photos []string
	Price  string
	Album  *Album

	CreatedAt time.Time
}

// NewSession returns a session positioned at the first input step.
func NewSession(userID int64) *Session {
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		ChatID:    userID,
		Step:      StepAwaitType,
		Album:     &Album{},
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Photos = slices.Clone(s.Photos)
	c.Album = s.Album.Clone()
	return &c
}

// Sealed reports whether the photo set can no longer change.
func (s *Session) Sealed() bool {
	return s.Step.Index() > StepAwaitPhotos.Index()
}

// Listing is the finished record ready for publication.
type Listing struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Type        Type
	Author      Author
	ChatID      int64
	Title       string
	Description string
	Price       string
	Photos      []string
	CreatedAt   time.Time
}

// Listing snapshots a completed session.
func (s *Session) Listing() Listing {
	return Listing{
		ID:          uuid.New(),
		SessionID:   s.ID,
		Type:        s.Type,
		Author:      s.Author,
		ChatID:      s.ChatID,
		Title:       s.Title,
		Description: s.Description,
		Price:       s.Price,
		Photos:      slices.Clone(s.Photos),
		CreatedAt:   time.Now(),
	}
}

// IsDigits reports whether s is non-empty and consists of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
