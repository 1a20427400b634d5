package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE resource_cache (
  fingerprint TEXT PRIMARY KEY,
  data BLOB NOT NULL,
  etag TEXT NOT NULL,
  fetched_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func TestGet_MissingEntryReturnsNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	e, err := r.Get(context.Background(), "fp-missing")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestPut_InsertAndOverwrite(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	now := time.Date(2026, 8, 12, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Put(ctx, &Entry{
		Fingerprint: "fp1",
		Data:        []byte("body-1"),
		ETag:        `"e1"`,
		FetchedAt:   now,
	}))

	e, err := r.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []byte("body-1"), e.Data)
	assert.Equal(t, `"e1"`, e.ETag)
	assert.Equal(t, now, e.FetchedAt)

	// a fresh 200 overwrites data, etag and timestamp
	later := now.Add(time.Hour)
	require.NoError(t, r.Put(ctx, &Entry{
		Fingerprint: "fp1",
		Data:        []byte("body-2"),
		ETag:        `"e2"`,
		FetchedAt:   later,
	}))

	e, err = r.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, []byte("body-2"), e.Data)
	assert.Equal(t, `"e2"`, e.ETag)
	assert.Equal(t, later, e.FetchedAt)
}

func TestDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &Entry{Fingerprint: "fp1", Data: []byte("x"), ETag: "e", FetchedAt: time.Now()}))
	require.NoError(t, r.Delete(ctx, "fp1"))

	e, err := r.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, e)
}
