package state

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekit/internal/models"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE app_state (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)

	return NewStore(NewSQLiteRepository(db))
}

func TestStore_Bool(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// unset key falls back to the default
	v, err := s.GetBool(ctx, KeyDayDownloadOK, true)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, s.SetBool(ctx, KeyDayDownloadOK, false))
	v, err = s.GetBool(ctx, KeyDayDownloadOK, true)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, s.SetBool(ctx, KeyDayDownloadOK, true))
	v, err = s.GetBool(ctx, KeyDayDownloadOK, false)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestStore_String(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	v, err := s.GetString(ctx, KeyPackageFingerprint)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetString(ctx, KeyPackageFingerprint, "abc123"))
	v, err = s.GetString(ctx, KeyPackageFingerprint)
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestStore_Time(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, ok, err := s.GetTime(ctx, KeyTraceWarningAttemptAt)
	require.NoError(t, err)
	assert.False(t, ok)

	ts := time.Date(2026, 8, 12, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetTime(ctx, KeyTraceWarningAttemptAt, ts))

	got, ok, err := s.GetTime(ctx, KeyTraceWarningAttemptAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ts, got)
}

func TestStore_RiskResult(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	r, err := s.RiskResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, r)

	in := &models.RiskResult{
		Level: models.RiskLevelHigh,
		PerDateLevel: map[string]models.RiskLevel{
			"2026-08-11": models.RiskLevelHigh,
			"2026-08-10": models.RiskLevelLow,
		},
		Encounters:   map[string]int{"2026-08-11": 2},
		CalculatedAt: time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SetRiskResult(ctx, in))

	out, err := s.RiskResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Level, out.Level)
	assert.Equal(t, in.PerDateLevel, out.PerDateLevel)
	assert.True(t, in.CalculatedAt.Equal(out.CalculatedAt))
	assert.Equal(t, "2026-08-11", out.MostRecentDateWithLevel(models.RiskLevelHigh))
}
