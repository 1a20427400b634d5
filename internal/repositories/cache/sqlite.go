package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	query := `SELECT data, etag, fetched_at FROM resource_cache WHERE fingerprint = ?`
	row := r.db.QueryRowContext(ctx, query, fingerprint)

	e := &Entry{Fingerprint: fingerprint}
	var fetchedAt int64
	if err := row.Scan(&e.Data, &e.ETag, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	e.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return e, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO resource_cache (fingerprint, data, etag, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET data = excluded.data,
			etag = excluded.etag,
			fetched_at = excluded.fetched_at
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.Fingerprint, entry.Data, entry.ETag, entry.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM resource_cache WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
