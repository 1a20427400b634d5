package checkins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/dbx"
	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.Checkin, error) {
	query := `SELECT id, location_id_hash, start_ts, end_ts FROM checkins ORDER BY start_ts`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select checkins: %w", err)
	}
	defer rows.Close()

	var result []models.Checkin
	for rows.Next() {
		var c models.Checkin
		var start, end int64
		if err := rows.Scan(&c.ID, &c.LocationIDHash, &start, &end); err != nil {
			return nil, err
		}
		c.Start = time.Unix(start, 0).UTC()
		c.End = time.Unix(end, 0).UTC()
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count checkins: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) EarliestStart(ctx context.Context) (time.Time, bool, error) {
	var start sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MIN(start_ts) FROM checkins`).Scan(&start)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, fmt.Errorf("failed to get earliest checkin: %w", err)
	}
	if !start.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(start.Int64, 0).UTC(), true, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, c *models.Checkin) error {
	query := `INSERT INTO checkins (id, location_id_hash, start_ts, end_ts) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.LocationIDHash, c.Start.Unix(), c.End.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert checkin: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete checkin: %w", err)
	}
	return nil
}
