// Package localstate persists the small bits of client state that must
// survive restarts: the cached session credential and the UI theme. Backed by
// an embedded sqlite database through Bun.
package localstate

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	keySessionToken = "session_token"
	keyTheme        = "theme"
)

// Entry is the Bun model for one stored value.
type Entry struct {
	bun.BaseModel `bun:"table:local_state"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Store is the key-value persistence layer.
type Store struct {
	db *bun.DB
}

// Open opens (or creates) the state database at path. Use ":memory:" in
// tests.
func Open(ctx context.Context, path string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "opening local state database failed")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "creating local state table failed")
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, or "" when absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := s.db.NewSelect().
		Model(&entry).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, errors.CategoryOperation, "reading local state failed")
	}
	return entry.Value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	entry := &Entry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "writing local state failed")
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "deleting local state failed")
	}
	return nil
}

// SessionToken returns the persisted session credential, if any.
func (s *Store) SessionToken(ctx context.Context) (string, error) {
	return s.Get(ctx, keySessionToken)
}

// SetSessionToken persists the session credential. An empty token deletes the
// row, which is how sign-out leaves no trace behind.
func (s *Store) SetSessionToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Delete(ctx, keySessionToken)
	}
	return s.Set(ctx, keySessionToken, token)
}

// Theme returns the stored UI theme, defaulting to "light".
func (s *Store) Theme(ctx context.Context) (string, error) {
	theme, err := s.Get(ctx, keyTheme)
	if err != nil {
		return "", err
	}
	if theme == "" {
		theme = "light"
	}
	return theme, nil
}

// SetTheme stores the UI theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.Set(ctx, keyTheme, theme)
}
