package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/models"
)

var calcNow = time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

func TestCalculate_ProximityThreshold(t *testing.T) {
	cfg := appconfig.Default() // proximity threshold 900

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	windows := []models.ExposureWindow{
		// 30 minutes at risk level 30: score exactly 900
		{Date: day, TransmissionRiskLevel: 30, Seconds: 1800},
	}

	r := Calculate(windows, nil, cfg, calcNow)
	assert.Equal(t, models.RiskLevelHigh, r.Level)
	assert.Equal(t, models.RiskLevelHigh, r.PerDateLevel["2026-08-10"])
	assert.Equal(t, 1, r.Encounters["2026-08-10"])
	assert.Equal(t, calcNow, r.CalculatedAt)
}

func TestCalculate_BelowThresholdIsLow(t *testing.T) {
	cfg := appconfig.Default()

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	windows := []models.ExposureWindow{
		{Date: day, TransmissionRiskLevel: 2, Seconds: 600},
	}

	r := Calculate(windows, nil, cfg, calcNow)
	assert.Equal(t, models.RiskLevelLow, r.Level)
	assert.Equal(t, models.RiskLevelLow, r.PerDateLevel["2026-08-10"])
}

func TestCalculate_ScoreAccumulatesAcrossWindows(t *testing.T) {
	cfg := appconfig.Default()

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	windows := []models.ExposureWindow{
		{Date: day, TransmissionRiskLevel: 30, Seconds: 900}, // 450
		{Date: day, TransmissionRiskLevel: 30, Seconds: 900}, // 450
	}

	r := Calculate(windows, nil, cfg, calcNow)
	assert.Equal(t, models.RiskLevelHigh, r.Level)
	assert.Equal(t, 2, r.Encounters["2026-08-10"])
}

func TestCalculate_PresenceMatchRaisesDate(t *testing.T) {
	cfg := appconfig.Default() // presence threshold 6

	// interval 2977554 starts 2026-08-12T11:00:00Z
	ms := []models.TraceTimeIntervalMatch{
		{StartIntervalNumber: 2977554, TransmissionRiskLevel: 7},
	}

	r := Calculate(nil, ms, cfg, calcNow)
	assert.Equal(t, models.RiskLevelHigh, r.Level)
	assert.Equal(t, models.RiskLevelHigh, r.PerDateLevel["2026-08-12"])
	assert.Equal(t, 1, r.Encounters["2026-08-12"])
}

func TestCalculate_PresenceBelowThresholdIsLow(t *testing.T) {
	cfg := appconfig.Default()

	ms := []models.TraceTimeIntervalMatch{
		{StartIntervalNumber: 2977554, TransmissionRiskLevel: 3},
	}

	r := Calculate(nil, ms, cfg, calcNow)
	assert.Equal(t, models.RiskLevelLow, r.Level)
}

func TestCalculate_PresenceNeverLowersProximityRating(t *testing.T) {
	cfg := appconfig.Default()

	day := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	windows := []models.ExposureWindow{
		{Date: day, TransmissionRiskLevel: 30, Seconds: 1800}, // high
	}
	ms := []models.TraceTimeIntervalMatch{
		{StartIntervalNumber: 2977554, TransmissionRiskLevel: 1}, // low, same date
	}

	r := Calculate(windows, ms, cfg, calcNow)
	assert.Equal(t, models.RiskLevelHigh, r.PerDateLevel["2026-08-12"])
	assert.Equal(t, 2, r.Encounters["2026-08-12"])
}

func TestCalculate_Empty(t *testing.T) {
	r := Calculate(nil, nil, appconfig.Default(), calcNow)
	assert.Equal(t, models.RiskLevelLow, r.Level)
	assert.Empty(t, r.PerDateLevel)
	assert.Empty(t, r.Encounters)
}
