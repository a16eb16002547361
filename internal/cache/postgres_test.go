package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/cache"
)

// fakeDB keeps cache_entries rows in memory.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[string]fakeRow
	execErr error
	execs   []string
	now     time.Time
}

type fakeRow struct {
	payload   []byte
	updatedAt time.Time
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]fakeRow), now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execs = append(db.execs, sql)
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	if len(args) == 2 {
		db.rows[args[0].(string)] = fakeRow{payload: args[1].([]byte), updatedAt: db.now}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	row, ok := db.rows[args[0].(string)]
	return scanner{row: row, found: ok}
}

type scanner struct {
	row   fakeRow
	found bool
}

func (s scanner) Scan(dest ...any) error {
	if !s.found {
		return pgx.ErrNoRows
	}
	*dest[0].(*[]byte) = s.row.payload
	*dest[1].(*time.Time) = s.row.updatedAt
	return nil
}

func TestPostgresBackend_ReadWrite(t *testing.T) {
	db := newFakeDB()
	backend := cache.NewPostgresBackend(db)
	ctx := context.Background()

	require.NoError(t, backend.EnsureSchema(ctx))
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS cache_entries")

	_, _, err := backend.Read(ctx, "stations.json")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, backend.Write(ctx, "stations.json", []byte(`[]`)))

	data, updatedAt, err := backend.Read(ctx, "stations.json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
	assert.Equal(t, db.now, updatedAt)
}

func TestPostgresBackend_WriteError(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("connection reset")
	backend := cache.NewPostgresBackend(db)

	err := backend.Write(context.Background(), "stations.json", []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert cache entry")
	assert.ErrorIs(t, err, db.execErr)
}

func TestStore_WithPostgresBackend(t *testing.T) {
	store := cache.NewStore(cache.StoreConfig{Backend: cache.NewPostgresBackend(newFakeDB())})
	ctx := context.Background()

	require.NoError(t, store.SaveSensors(ctx, 3, nil))

	sensors, _, err := store.LoadSensors(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, sensors)
}
