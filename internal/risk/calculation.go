// Package risk turns the outputs of the download and matching pipeline
// into a per-date risk rating and orchestrates the full detection cycle.
package risk

import (
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/timex"
)

// Calculate rates every date touched by an exposure window or a check-in
// match. A date is high risk when its weighted proximity score (minutes
// of exposure times transmission risk level, summed) reaches the
// configured threshold, or when any presence match on that date carries a
// transmission risk level at or above the presence threshold. The overall
// level is the maximum over all dates.
func Calculate(windows []models.ExposureWindow, ms []models.TraceTimeIntervalMatch, cfg *appconfig.Config, now time.Time) *models.RiskResult {
	perDate := make(map[string]models.RiskLevel)
	encounters := make(map[string]int)
	score := make(map[string]int)

	for _, w := range windows {
		day := timex.DayKey(w.Date)
		encounters[day]++
		score[day] += w.Seconds / 60 * w.TransmissionRiskLevel
		if _, ok := perDate[day]; !ok {
			perDate[day] = models.RiskLevelLow
		}
	}
	for day, s := range score {
		if s >= cfg.ProximityScoreThreshold {
			perDate[day] = models.RiskLevelHigh
		}
	}

	for i := range ms {
		m := &ms[i]
		day := timex.DayKey(time.Unix(timex.IntervalStart(m.StartIntervalNumber), 0))
		encounters[day]++
		if _, ok := perDate[day]; !ok {
			perDate[day] = models.RiskLevelLow
		}
		// presence only ever raises a date's level
		if int(m.TransmissionRiskLevel) >= cfg.PresenceRiskThreshold {
			perDate[day] = models.RiskLevelHigh
		}
	}

	level := models.RiskLevelLow
	for _, l := range perDate {
		if l == models.RiskLevelHigh {
			level = models.RiskLevelHigh
			break
		}
	}

	return &models.RiskResult{
		Level:        level,
		PerDateLevel: perDate,
		Encounters:   encounters,
		CalculatedAt: now.UTC(),
	}
}
