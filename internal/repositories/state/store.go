package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// Keys for the persisted state slots.
const (
	KeyDayDownloadOK          = "keypkg.day.last_success"
	KeyHourDownloadOK         = "keypkg.hour.last_success"
	KeyTraceWarningDownloadOK = "tracewarn.last_success"
	KeyTraceWarningAttemptAt  = "tracewarn.last_attempt"
	KeyRiskResult             = "risk.result"
	KeyRiskLowered            = "risk.lowered"
	KeyKeysSubmitted          = "risk.keys_submitted"
	KeyPositiveTestShown      = "risk.positive_test_shown"
	KeyPackageFingerprint     = "risk.pkg_fingerprint"
)

// Store adds typed accessors on top of the raw key-value repository.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// GetBool returns the stored flag, or def when the key was never written.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if v == nil {
		return def, nil
	}
	return string(v) == "1", nil
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.repo.Set(ctx, key, []byte(v))
}

// GetString returns the stored value, or "" when the key was never written.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.repo.Get(ctx, key)
	if err != nil || v == nil {
		return "", err
	}
	return string(v), nil
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, key, []byte(value))
}

// GetTime returns the stored timestamp; ok is false when the key is absent.
func (s *Store) GetTime(ctx context.Context, key string) (t time.Time, ok bool, err error) {
	v, err := s.repo.Get(ctx, key)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	sec, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt timestamp in state[%s]: %w", key, err)
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

func (s *Store) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.repo.Set(ctx, key, []byte(strconv.FormatInt(t.Unix(), 10)))
}

// RiskResult returns the current risk-calculation result, or nil when no
// cycle has completed yet.
func (s *Store) RiskResult(ctx context.Context) (*models.RiskResult, error) {
	v, err := s.repo.Get(ctx, KeyRiskResult)
	if err != nil || v == nil {
		return nil, err
	}
	var r models.RiskResult
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("corrupt risk result blob: %w", err)
	}
	return &r, nil
}

// SetRiskResult replaces the current risk result. Each cycle's result
// supersedes the previous one.
func (s *Store) SetRiskResult(ctx context.Context, r *models.RiskResult) error {
	v, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode risk result: %w", err)
	}
	return s.repo.Set(ctx, KeyRiskResult, v)
}
