package matches

import (
	"context"
	"fmt"

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

func (r *SQLiteRepository) Add(ctx context.Context, m *models.TraceTimeIntervalMatch) error {
	query := `INSERT INTO trace_time_interval_matches
		(id, checkin_id, package_id, country, location_id_hash, transmission_risk_level, start_interval_number, end_interval_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.CheckinID, m.PackageID, m.Country, m.LocationIDHash,
		m.TransmissionRiskLevel, m.StartIntervalNumber, m.EndIntervalNumber)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.TraceTimeIntervalMatch, error) {
	query := `SELECT id, checkin_id, package_id, country, location_id_hash, transmission_risk_level, start_interval_number, end_interval_number
		FROM trace_time_interval_matches ORDER BY package_id, checkin_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select matches: %w", err)
	}
	defer rows.Close()

	var result []models.TraceTimeIntervalMatch
	for rows.Next() {
		var m models.TraceTimeIntervalMatch
		if err := rows.Scan(&m.ID, &m.CheckinID, &m.PackageID, &m.Country, &m.LocationIDHash,
			&m.TransmissionRiskLevel, &m.StartIntervalNumber, &m.EndIntervalNumber); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
