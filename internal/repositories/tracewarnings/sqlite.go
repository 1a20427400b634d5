package tracewarnings

import (
	"context"
	"fmt"
	"strings"

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

func (r *SQLiteRepository) Add(ctx context.Context, m *models.TraceWarningMetadata) error {
	query := `INSERT INTO trace_warning_packages (id, country, etag)
		VALUES (?, ?, ?)
		ON CONFLICT(id, country) DO UPDATE SET etag = excluded.etag
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.Country, m.ETag)
	if err != nil {
		return fmt.Errorf("failed to add trace warning metadata: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IDs(ctx context.Context, country string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM trace_warning_packages WHERE country = ? ORDER BY id`, country)
	if err != nil {
		return nil, fmt.Errorf("failed to select trace warning ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, country string, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM trace_warning_packages WHERE country = ? AND id < ?`, country, id)
	if err != nil {
		return fmt.Errorf("failed to purge stale trace warning metadata: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByETags(ctx context.Context, etags []string) error {
	if len(etags) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(etags)), ",")
	args := make([]any, len(etags))
	for i, etag := range etags {
		args[i] = etag
	}

	query := fmt.Sprintf(`DELETE FROM trace_warning_packages WHERE etag IN (%s)`, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete revoked trace warning metadata: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trace_warning_packages`); err != nil {
		return fmt.Errorf("failed to clear trace warning metadata: %w", err)
	}
	return nil
}
