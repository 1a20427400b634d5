// Package packages is the local store for downloaded day and hour key
// packages, keyed by (country, day) and (country, day, hour).
package packages

import (
	"context"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// Store persists key packages. Batch writes (AddFetchedDays,
// AddFetchedHours) are atomic: either the whole batch persists or none of
// it does. Implementations must be safe for concurrent use; writes are
// serialized internally.
//
// Failure kinds are distinguished via errors.Is: common.ErrNoDiskSpace for
// storage exhaustion, common.ErrRevokedPackage when a batch contains a
// package whose ETag is on the current revocation list, and a generic
// wrapped error otherwise.
type Store interface {
	AddFetchedDays(ctx context.Context, country string, days map[string]models.PackageBlob) error
	AddFetchedHours(ctx context.Context, country, day string, hours map[int]models.PackageBlob) error

	AllDays(ctx context.Context, country string) ([]string, error)
	Hours(ctx context.Context, country, day string) ([]int, error)
	DayPackage(ctx context.Context, country, day string) (*models.DayPackage, error)
	HourPackage(ctx context.Context, country, day string, hour int) (*models.HourPackage, error)

	DeleteDayPackage(ctx context.Context, country, day string) error
	DeleteHourPackage(ctx context.Context, country, day string, hour int) error

	// DeleteDaysOlderThan purges day packages past the sliding validity
	// window. DeleteHourPackagesExcept purges hour packages for any day
	// other than the given one.
	DeleteDaysOlderThan(ctx context.Context, country, day string) error
	DeleteHourPackagesExcept(ctx context.Context, country, day string) error

	// UpdateRevocationList replaces the set of revoked package ETags
	// enforced at write time.
	UpdateRevocationList(etags []string)
}
