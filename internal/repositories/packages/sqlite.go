package packages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/dmitrijs2005/exposurekit/internal/common"
	"github.com/dmitrijs2005/exposurekit/internal/dbx"
	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// SQLITE_FULL: the database cannot grow because the disk is full.
const sqliteFull = 13

// SQLiteStore implements Store on a sqlite database. It holds the *sql.DB
// (not a DBTX) because batch writes open their own transactions.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.RWMutex
	revoked map[string]struct{}
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, revoked: map[string]struct{}{}}
}

func (s *SQLiteStore) UpdateRevocationList(etags []string) {
	revoked := make(map[string]struct{}, len(etags))
	for _, etag := range etags {
		revoked[etag] = struct{}{}
	}
	s.mu.Lock()
	s.revoked = revoked
	s.mu.Unlock()
}

func (s *SQLiteStore) isRevoked(etag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[etag]
	return ok
}

// storageError maps driver failures onto the shared taxonomy, keeping disk
// exhaustion distinct from generic write failures.
func storageError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqliteFull {
		return common.ErrNoDiskSpace
	}
	return err
}

func (s *SQLiteStore) AddFetchedDays(ctx context.Context, country string, days map[string]models.PackageBlob) error {
	for day, blob := range days {
		if s.isRevoked(blob.ETag) {
			return fmt.Errorf("day package %s/%s: %w", country, day, common.ErrRevokedPackage)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO day_packages (country, day, bin, signature, etag)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(country, day) DO UPDATE SET bin = excluded.bin,
				signature = excluded.signature,
				etag = excluded.etag
		`
		for day, blob := range days {
			if _, err := tx.ExecContext(ctx, query, country, day, blob.Bin, blob.Signature, blob.ETag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store day packages: %w", storageError(err))
	}
	return nil
}

func (s *SQLiteStore) AddFetchedHours(ctx context.Context, country, day string, hours map[int]models.PackageBlob) error {
	for hour, blob := range hours {
		if s.isRevoked(blob.ETag) {
			return fmt.Errorf("hour package %s/%s/%d: %w", country, day, hour, common.ErrRevokedPackage)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO hour_packages (country, day, hour, bin, signature, etag)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(country, day, hour) DO UPDATE SET bin = excluded.bin,
				signature = excluded.signature,
				etag = excluded.etag
		`
		for hour, blob := range hours {
			if _, err := tx.ExecContext(ctx, query, country, day, hour, blob.Bin, blob.Signature, blob.ETag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store hour packages: %w", storageError(err))
	}
	return nil
}

func (s *SQLiteStore) AllDays(ctx context.Context, country string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day FROM day_packages WHERE country = ? ORDER BY day`, country)
	if err != nil {
		return nil, fmt.Errorf("failed to select days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

func (s *SQLiteStore) Hours(ctx context.Context, country, day string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour FROM hour_packages WHERE country = ? AND day = ? ORDER BY hour`, country, day)
	if err != nil {
		return nil, fmt.Errorf("failed to select hours: %w", err)
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var hour int
		if err := rows.Scan(&hour); err != nil {
			return nil, err
		}
		hours = append(hours, hour)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hours, nil
}

func (s *SQLiteStore) DayPackage(ctx context.Context, country, day string) (*models.DayPackage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT bin, signature, etag FROM day_packages WHERE country = ? AND day = ?`, country, day)

	p := &models.DayPackage{Country: country, Day: day}
	if err := row.Scan(&p.Bin, &p.Signature, &p.ETag); err != nil {
		return nil, fmt.Errorf("failed to get day package: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) HourPackage(ctx context.Context, country, day string, hour int) (*models.HourPackage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT bin, signature, etag FROM hour_packages WHERE country = ? AND day = ? AND hour = ?`,
		country, day, hour)

	p := &models.HourPackage{Country: country, Day: day, Hour: hour}
	if err := row.Scan(&p.Bin, &p.Signature, &p.ETag); err != nil {
		return nil, fmt.Errorf("failed to get hour package: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) DeleteDayPackage(ctx context.Context, country, day string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM day_packages WHERE country = ? AND day = ?`, country, day)
	if err != nil {
		return fmt.Errorf("failed to delete day package: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHourPackage(ctx context.Context, country, day string, hour int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM hour_packages WHERE country = ? AND day = ? AND hour = ?`, country, day, hour)
	if err != nil {
		return fmt.Errorf("failed to delete hour package: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDaysOlderThan(ctx context.Context, country, day string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM day_packages WHERE country = ? AND day < ?`, country, day)
	if err != nil {
		return fmt.Errorf("failed to purge expired day packages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHourPackagesExcept(ctx context.Context, country, day string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM hour_packages WHERE country = ? AND day <> ?`, country, day)
	if err != nil {
		return fmt.Errorf("failed to purge stale hour packages: %w", err)
	}
	return nil
}
