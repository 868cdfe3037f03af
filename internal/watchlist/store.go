// Package watchlist is the §6 external watchlist-store reference adapter:
// a concrete pgx-backed implementation behind the persisted-state
// interface the spec leaves abstract, grounded on
// internal/db/postgres.go's transactional-upsert shape.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/pkg/models"
)

// Store wraps a pgx connection pool with the watchlist operations.
type Store struct {
	pool *pgxpool.Pool
}

// Connect dials Postgres via pgx, matching the teacher's Connect shape.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("watchlist: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("watchlist: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// InitSchema creates the watchlist table if it doesn't already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS watchlist_entries (
			user_id    TEXT NOT NULL,
			address    TEXT NOT NULL,
			label      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, address)
		);
	`)
	if err != nil {
		return fmt.Errorf("watchlist: init schema: %w", err)
	}
	return nil
}

// Upsert adds or relabels a watched address for a user. The address is
// validated as a syntactically well-formed Solana mint/wallet address
// before it ever reaches SQL.
func (s *Store) Upsert(ctx context.Context, userID, address, label string) error {
	if userID == "" {
		return apperr.Wrap(apperr.ErrInvalidRequest, "watchlist: userID required")
	}
	if err := models.ValidateAddress(address); err != nil {
		return apperr.Wrap(apperr.ErrInvalidRequest, "watchlist: "+err.Error())
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watchlist_entries (user_id, address, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, address) DO UPDATE SET label = EXCLUDED.label;
	`, userID, address, label)
	if err != nil {
		return fmt.Errorf("watchlist: upsert: %w", err)
	}
	return nil
}

// Get reads a single watchlist row, ok=false on a miss.
func (s *Store) Get(ctx context.Context, userID, address string) (models.WatchlistEntry, bool, error) {
	var entry models.WatchlistEntry
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, address, label, created_at
		FROM watchlist_entries WHERE user_id = $1 AND address = $2;
	`, userID, address).Scan(&entry.UserID, &entry.Address, &entry.Label, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WatchlistEntry{}, false, nil
		}
		return models.WatchlistEntry{}, false, fmt.Errorf("watchlist: get: %w", err)
	}
	entry.CreatedAt = createdAt
	return entry, true, nil
}

// Remove deletes a watched address for a user; a miss is not an error.
func (s *Store) Remove(ctx context.Context, userID, address string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM watchlist_entries WHERE user_id = $1 AND address = $2;
	`, userID, address)
	if err != nil {
		return fmt.Errorf("watchlist: remove: %w", err)
	}
	return nil
}

// List returns every address a user watches, most recently added first.
func (s *Store) List(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, address, label, created_at
		FROM watchlist_entries WHERE user_id = $1 ORDER BY created_at DESC;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("watchlist: list: %w", err)
	}
	defer rows.Close()

	var out []models.WatchlistEntry
	for rows.Next() {
		var entry models.WatchlistEntry
		var createdAt time.Time
		if err := rows.Scan(&entry.UserID, &entry.Address, &entry.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("watchlist: scan: %w", err)
		}
		entry.CreatedAt = createdAt
		out = append(out, entry)
	}
	return out, rows.Err()
}
