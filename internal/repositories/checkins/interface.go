// Package checkins reads the local check-in records owned by the event
// store. The sync subsystem never mutates them; Add and DeleteByID exist
// for the owning collaborator and for tests.
package checkins

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

type Repository interface {
	All(ctx context.Context) ([]models.Checkin, error)
	Count(ctx context.Context) (int, error)

	// EarliestStart returns the oldest check-in start time. ok is false
	// when the table is empty.
	EarliestStart(ctx context.Context) (start time.Time, ok bool, err error)

	Add(ctx context.Context, c *models.Checkin) error
	DeleteByID(ctx context.Context, id string) error
}
