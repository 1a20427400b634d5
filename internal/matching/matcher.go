// Package matching computes temporal overlap between local check-ins and
// downloaded trace-time-interval warnings, and persists a match record for
// every pair that actually overlapped.
package matching

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/checkins"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/matches"
	"github.com/dmitrijs2005/exposurekit/internal/timex"
)

// OverlapMinutes returns the whole minutes during which the check-in and
// the warning interval overlap. Sub-minute remainders are rounded half
// away from zero; non-overlapping pairs return 0.
func OverlapMinutes(c *models.Checkin, w *models.TraceTimeIntervalWarning) int {
	warningStart := timex.IntervalStart(w.StartIntervalNumber)
	warningEnd := timex.IntervalStart(w.StartIntervalNumber + w.Period)

	overlapStart := max(c.Start.Unix(), warningStart)
	overlapEnd := min(c.End.Unix(), warningEnd)

	overlapSeconds := overlapEnd - overlapStart
	if overlapSeconds < 0 {
		return 0
	}
	return int(math.Round(float64(overlapSeconds) / 60))
}

// Matcher persists matches for downloaded trace-warning packages.
type Matcher struct {
	checkins checkins.Repository
	matches  matches.Repository
	log      logging.Logger
}

func NewMatcher(checkinRepo checkins.Repository, matchRepo matches.Repository, log logging.Logger) *Matcher {
	return &Matcher{checkins: checkinRepo, matches: matchRepo, log: log}
}

// Match runs every warning of the package against the local check-ins and
// inserts one match record per (check-in, warning) pair with positive
// overlap. Only check-ins sharing the warning's location-hash are
// considered. It returns the number of matches persisted.
func (m *Matcher) Match(ctx context.Context, packageID int64, country string, pkg *models.TraceWarningPackage) (int, error) {
	existing, err := m.checkins.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load checkins: %w", err)
	}

	persisted := 0
	for i := range pkg.Warnings {
		w := &pkg.Warnings[i]
		for j := range existing {
			c := &existing[j]
			if !bytes.Equal(c.LocationIDHash, w.LocationIDHash) {
				continue
			}
			overlap := OverlapMinutes(c, w)
			if overlap <= 0 {
				continue
			}

			match := &models.TraceTimeIntervalMatch{
				ID:                    uuid.NewString(),
				CheckinID:             c.ID,
				PackageID:             packageID,
				Country:               country,
				LocationIDHash:        w.LocationIDHash,
				TransmissionRiskLevel: w.TransmissionRiskLevel,
				StartIntervalNumber:   w.StartIntervalNumber,
				EndIntervalNumber:     w.StartIntervalNumber + w.Period,
			}
			if err := m.matches.Add(ctx, match); err != nil {
				return persisted, fmt.Errorf("failed to persist match: %w", err)
			}
			persisted++

			m.log.Debug(ctx, "persisted trace warning match",
				"checkin", c.ID, "package", packageID, "overlap_minutes", overlap)
		}
	}
	return persisted, nil
}
