// Package tracewarnings is the hour-indexed metadata table of downloaded
// trace-warning packages. Deleting a row cascades to the match records
// derived from that package.
package tracewarnings

import (
	"context"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

type Repository interface {
	Add(ctx context.Context, m *models.TraceWarningMetadata) error

	// IDs returns the hour-bucket ids known for a country, ascending.
	IDs(ctx context.Context, country string) ([]int64, error)

	// DeleteOlderThan removes metadata with id strictly below the given
	// hour bucket.
	DeleteOlderThan(ctx context.Context, country string, id int64) error

	// DeleteByETags removes metadata whose ETag appears on the
	// server-published revocation list.
	DeleteByETags(ctx context.Context, etags []string) error

	// DeleteAll clears the table, used when the check-in database is empty
	// and nothing could ever be matched.
	DeleteAll(ctx context.Context) error
}
