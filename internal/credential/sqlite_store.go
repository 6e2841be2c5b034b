package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store on the credentials table. One row per
// profile; the row is replaced wholesale inside a transaction so the
// access/refresh pair can never be observed half-written.
type SQLiteStore struct {
	db      *sql.DB
	profile string
}

// NewSQLiteStore creates a SQLite-backed credential store for a profile.
func NewSQLiteStore(db *sql.DB, profile string) *SQLiteStore {
	if profile == "" {
		profile = "default"
	}
	return &SQLiteStore{db: db, profile: profile}
}

// Save replaces the stored pair atomically.
func (s *SQLiteStore) Save(ctx context.Context, pair Pair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (profile, access_token, refresh_token, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   updated_at = excluded.updated_at`,
		s.profile, pair.AccessToken, pair.RefreshToken, now); err != nil {
		return fmt.Errorf("%w: saving credentials: %w", ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing credentials: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Load returns the stored pair, or nil when the profile has none.
func (s *SQLiteStore) Load(ctx context.Context) (*Pair, error) {
	var pair Pair
	err := s.db.QueryRowContext(ctx,
		"SELECT access_token, refresh_token FROM credentials WHERE profile = ?",
		s.profile,
	).Scan(&pair.AccessToken, &pair.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: loading credentials: %w", ErrStorageUnavailable, err)
	}
	return &pair, nil
}

// Clear removes the stored pair.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE profile = ?", s.profile); err != nil {
		return fmt.Errorf("%w: clearing credentials: %w", ErrStorageUnavailable, err)
	}
	return nil
}
