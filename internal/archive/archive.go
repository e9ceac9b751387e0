// Package archive records published listings in SQL storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/internal/listing"
)

// Record is one archived listing row.
type Record struct {
	ID          string    `db:"id"`
	SessionID   string    `db:"session_id"`
	UserID      int64     `db:"user_id"`
	Username    string    `db:"username"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Price       string    `db:"price"`
	Photos      string    `db:"photos"`
	UserSent    bool      `db:"user_sent"`
	AdminSent   bool      `db:"admin_sent"`
	CreatedAt   time.Time `db:"created_at"`
}

// PhotoRefs decodes the stored photo references.
func (r Record) PhotoRefs() []string {
	var refs []string
	_ = json.Unmarshal([]byte(r.Photos), &refs)
	return refs
}

// Outcome is the per-destination result saved with a listing.
type Outcome struct {
	UserSent  bool
	AdminSent bool
}

// Stats summarizes the archive.
type Stats struct {
	Total     int `db:"total"`
	Sell      int `db:"sell"`
	Buy       int `db:"buy"`
	Forwarded int `db:"forwarded"`
}

// Store persists listings through sqlx. Queries are written with ? and rebound per driver.
type Store struct {
	db *sqlx.DB
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Save inserts a published listing with its send outcome.
func (s *Store) Save(ctx context.Context, l listing.Listing, out Outcome) error {
	photos, err := json.Marshal(l.Photos)
	if err != nil {
		return fmt.Errorf("archive: encode photos: %w", err)
	}
	rec := Record{
		ID:          l.ID.String(),
		SessionID:   l.SessionID.String(),
		UserID:      l.Author.ID,
		Username:    l.Author.Username,
		Type:        string(l.Type),
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Photos:      string(photos),
		UserSent:    out.UserSent,
		AdminSent:   out.AdminSent,
		CreatedAt:   l.CreatedAt.UTC(),
	}

	start := time.Now()
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO listings (id, session_id, user_id, username, type, title, description, price, photos, user_sent, admin_sent, created_at)
		VALUES (:id, :session_id, :user_id, :username, :type, :title, :description, :price, :photos, :user_sent, :admin_sent, :created_at)`, rec)
	if err != nil {
		logger.Error(ctx, "archive", "save.fail",
			slog.String("listing_id", rec.ID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("archive: insert listing: %w", err)
	}
	logger.Debug(ctx, "archive", "save.ok",
		slog.String("listing_id", rec.ID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Get loads one listing by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(`SELECT * FROM listings WHERE id = ?`), id)
	if err != nil {
		return Record{}, fmt.Errorf("archive: get %s: %w", id, err)
	}
	return rec, nil
}

// Recent returns the newest listings first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []Record
	err := s.db.SelectContext(ctx, &recs,
		s.db.Rebind(`SELECT * FROM listings ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	return recs, nil
}

// Stats counts archived listings.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0) AS sell,
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0) AS buy,
			COALESCE(SUM(CASE WHEN admin_sent THEN 1 ELSE 0 END), 0) AS forwarded
		FROM listings`), string(listing.TypeSell), string(listing.TypeBuy))
	if err != nil {
		return Stats{}, fmt.Errorf("archive: stats: %w", err)
	}
	return st, nil
}
