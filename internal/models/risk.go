package models

import "time"

// RiskLevel is the two-valued outcome of a risk calculation.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelHigh
)

func (l RiskLevel) String() string {
	if l == RiskLevelHigh {
		return "high"
	}
	return "low"
}

// ExposureWindow is one proximity encounter reported by the platform's
// exposure-detection capability.
type ExposureWindow struct {
	Date                  time.Time `json:"date"`
	TransmissionRiskLevel int       `json:"transmissionRiskLevel"`
	Seconds               int       `json:"seconds"`
}

// RiskResult is the outcome of one risk-detection cycle. Each cycle
// produces a fresh result that supersedes the previous one; results are
// never merged.
type RiskResult struct {
	Level        RiskLevel            `json:"level"`
	PerDateLevel map[string]RiskLevel `json:"perDateLevel"`
	Encounters   map[string]int       `json:"encounters"`
	CalculatedAt time.Time            `json:"calculatedAt"`
}

// MostRecentDateWithLevel returns the latest day key carrying the given
// level, or "" when none does.
func (r *RiskResult) MostRecentDateWithLevel(level RiskLevel) string {
	var latest string
	for day, l := range r.PerDateLevel {
		if l == level && day > latest {
			latest = day
		}
	}
	return latest
}
