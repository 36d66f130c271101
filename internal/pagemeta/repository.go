// Package pagemeta persists page titles alongside cached preview images so a
// cache hit can answer without refetching the page.
package pagemeta

import (
	"context"
	"database/sql"
	"time"
)

// Repository handles page metadata persistence.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get returns the record for key, or nil if not found or expired.
func (r *Repository) Get(ctx context.Context, key string) (*Record, error) {
	var rec Record
	var fetchedAt, expiresAt string
	var title, imageURL sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT cache_key, url, title, image_url, strategy, fetched_at, expires_at
		FROM page_meta WHERE cache_key = ?
	`, key).Scan(&rec.Key, &rec.URL, &title, &imageURL, &rec.Strategy, &fetchedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Title = title.String
	rec.ImageURL = imageURL.String
	rec.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	rec.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

	if r.now().After(rec.ExpiresAt) {
		return nil, nil
	}
	return &rec, nil
}

// Save inserts or replaces a record. Zero timestamps default to now and
// now+TTL.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = r.now().UTC()
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.FetchedAt.Add(TTL)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO page_meta (cache_key, url, title, image_url, strategy, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Key, rec.URL, nullString(rec.Title), nullString(rec.ImageURL), rec.Strategy,
		rec.FetchedAt.UTC().Format(time.RFC3339), rec.ExpiresAt.UTC().Format(time.RFC3339))
	return err
}

// CleanExpired removes expired records and reports how many were deleted.
func (r *Repository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM page_meta WHERE expires_at < ?`, r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullString returns sql.NullString for optional text fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
