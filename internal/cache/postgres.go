package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresBackend.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS cache_entries (
		name       TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresBackend stores cache documents in the cache_entries table.
type PostgresBackend struct {
	db DB
}

// NewPostgresBackend creates a new PostgreSQL cache backend.
func NewPostgresBackend(db DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// EnsureSchema creates the cache_entries table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// Read implements Backend.
func (b *PostgresBackend) Read(ctx context.Context, name string) ([]byte, time.Time, error) {
	query := `
		SELECT payload, updated_at
		FROM cache_entries
		WHERE name = $1
	`

	var (
		payload   []byte
		updatedAt time.Time
	)
	err := b.db.QueryRow(ctx, query, name).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("query cache entry: %w", err)
	}
	return payload, updatedAt, nil
}

// Write implements Backend.
func (b *PostgresBackend) Write(ctx context.Context, name string, data []byte) error {
	query := `
		INSERT INTO cache_entries (name, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at = NOW()
	`

	if _, err := b.db.Exec(ctx, query, name, data); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}
