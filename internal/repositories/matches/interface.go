// Package matches stores derived trace-time-interval match records. The
// matcher only inserts; rows disappear by cascade when their check-in or
// source package metadata is deleted.
package matches

import (
	"context"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

type Repository interface {
	Add(ctx context.Context, m *models.TraceTimeIntervalMatch) error
	All(ctx context.Context) ([]models.TraceTimeIntervalMatch, error)
}
