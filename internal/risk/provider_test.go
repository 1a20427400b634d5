package risk

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/common"
	twdownload "github.com/dmitrijs2005/exposurekit/internal/download/tracewarnings"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/matches"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/packages"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/state"

	_ "modernc.org/sqlite"
)

var testNow = time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

type fakeKeyDownloader struct {
	mu        sync.Mutex
	dayErr    error
	hourErr   error
	dayBlocks bool // when set, the day download stalls until ctx expires
	dayCalls  int
	hourCalls int
}

func (f *fakeKeyDownloader) StartDayPackagesDownload(ctx context.Context, countries []string) error {
	f.mu.Lock()
	f.dayCalls++
	f.mu.Unlock()
	if f.dayBlocks {
		<-ctx.Done()
		// same wrapping shape as the real downloader's index failure path
		return fmt.Errorf("day index for DE: %w: %w", common.ErrUncompletedPackages, ctx.Err())
	}
	return f.dayErr
}

func (f *fakeKeyDownloader) StartHourPackagesDownload(ctx context.Context, countries []string) error {
	f.mu.Lock()
	f.hourCalls++
	f.mu.Unlock()
	return f.hourErr
}

type fakeTraceDownloader struct {
	err   error
	calls int
}

func (f *fakeTraceDownloader) Start(ctx context.Context, countries []string) (twdownload.Result, error) {
	f.calls++
	return twdownload.ResultSuccess, f.err
}

type fakeDetector struct {
	mu      sync.Mutex
	windows []models.ExposureWindow
	err     error
	block   chan struct{} // when set, Detect waits for close or ctx
	calls   int
}

func (f *fakeDetector) Detect(ctx context.Context, cfg *appconfig.Config) ([]models.ExposureWindow, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.windows, f.err
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConfig struct {
	cfg *appconfig.Config
}

func (f *fakeConfig) AppConfig(ctx context.Context) (*appconfig.Config, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	return appconfig.Default(), nil
}

type deps struct {
	key      *fakeKeyDownloader
	trace    *fakeTraceDownloader
	detector *fakeDetector
	store    packages.Store
	matches  matches.Repository
	state    *state.Store
}

func setupDeps(t *testing.T) *deps {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE day_packages (
  country TEXT NOT NULL, day TEXT NOT NULL,
  bin BLOB NOT NULL, signature BLOB NOT NULL, etag TEXT NOT NULL,
  PRIMARY KEY (country, day)
);
CREATE TABLE hour_packages (
  country TEXT NOT NULL, day TEXT NOT NULL, hour INTEGER NOT NULL,
  bin BLOB NOT NULL, signature BLOB NOT NULL, etag TEXT NOT NULL,
  PRIMARY KEY (country, day, hour)
);
CREATE TABLE checkins (
  id TEXT PRIMARY KEY, location_id_hash BLOB NOT NULL,
  start_ts INTEGER NOT NULL, end_ts INTEGER NOT NULL
);
CREATE TABLE trace_warning_packages (
  id INTEGER NOT NULL, country TEXT NOT NULL, etag TEXT NOT NULL,
  PRIMARY KEY (id, country)
);
CREATE TABLE trace_time_interval_matches (
  id TEXT PRIMARY KEY,
  checkin_id TEXT NOT NULL,
  package_id INTEGER NOT NULL, country TEXT NOT NULL,
  location_id_hash BLOB NOT NULL,
  transmission_risk_level INTEGER NOT NULL,
  start_interval_number INTEGER NOT NULL,
  end_interval_number INTEGER NOT NULL
);
CREATE TABLE app_state (key TEXT PRIMARY KEY, value BLOB NOT NULL);
`)
	require.NoError(t, err)

	return &deps{
		key:      &fakeKeyDownloader{},
		trace:    &fakeTraceDownloader{},
		detector: &fakeDetector{},
		store:    packages.NewSQLiteStore(db),
		matches:  matches.NewSQLiteRepository(db),
		state:    state.NewStore(state.NewSQLiteRepository(db)),
	}
}

func newProvider(t *testing.T, d *deps, timeout time.Duration) *Provider {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p := NewProvider(d.key, d.trace, d.detector, d.store, d.matches, d.state,
		&fakeConfig{}, []string{"DE"}, timeout, log)
	p.now = func() time.Time { return testNow }
	return p
}

func highWindow() models.ExposureWindow {
	return models.ExposureWindow{
		Date:                  time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		TransmissionRiskLevel: 30,
		Seconds:               1800,
	}
}

func TestRequestRisk_CalculatesPersistsAndPublishes(t *testing.T) {
	d := setupDeps(t)
	d.detector.windows = []models.ExposureWindow{highWindow()}
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	var (
		states   []ActivityState
		received *models.RiskResult
	)
	p.Subscribe(&Consumer{
		DidChangeActivityState: func(s ActivityState) { states = append(states, s) },
		DidCalculateRisk:       func(r *models.RiskResult) { received = r },
	})

	result, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.RiskLevelHigh, result.Level)
	assert.Equal(t, testNow, result.CalculatedAt)

	assert.Equal(t, 1, d.key.dayCalls)
	assert.Equal(t, 1, d.key.hourCalls)
	assert.Equal(t, 1, d.trace.calls)
	assert.Equal(t, 1, d.detector.callCount())

	assert.Equal(t, []ActivityState{StateRiskRequested, StateDownloading, StateDetecting, StateIdle}, states)
	assert.Equal(t, result, received)

	persisted, err := d.state.RiskResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Level, persisted.Level)
}

func TestRequestRisk_LogsMostRecentHighDate(t *testing.T) {
	d := setupDeps(t)
	d.detector.windows = []models.ExposureWindow{highWindow()}

	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	p := NewProvider(d.key, d.trace, d.detector, d.store, d.matches, d.state,
		&fakeConfig{}, []string{"DE"}, 5*time.Second, log)
	p.now = func() time.Time { return testNow }

	_, err := p.RequestRisk(context.Background(), false)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "most_recent_high=2026-08-10")
}

func TestRequestRisk_ReusesResultWithinDetectionInterval(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	first, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.detector.callCount())

	// interval not elapsed, inventory unchanged: detection is skipped but
	// downloads still run
	second, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.detector.callCount())
	assert.Equal(t, 2, d.key.dayCalls)
	assert.Equal(t, first.CalculatedAt, second.CalculatedAt)
}

func TestRequestRisk_UserInitiatedForcesDetection(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	_, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)

	_, err = p.RequestRisk(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, d.detector.callCount())
}

func TestRequestRisk_NewPackagesForceDetection(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	_, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)

	// a new day package changes the inventory fingerprint
	err = d.store.AddFetchedDays(ctx, "DE", map[string]models.PackageBlob{
		"2026-08-11": {Bin: []byte("b"), Signature: []byte("s"), ETag: `"e"`},
	})
	require.NoError(t, err)

	_, err = p.RequestRisk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, d.detector.callCount())
}

func TestRequestRisk_KeysSubmittedDownloadsButSkipsDetection(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	prev := &models.RiskResult{Level: models.RiskLevelHigh, CalculatedAt: testNow.Add(-24 * time.Hour)}
	require.NoError(t, d.state.SetRiskResult(ctx, prev))
	require.NoError(t, d.state.SetBool(ctx, state.KeyKeysSubmitted, true))

	result, err := p.RequestRisk(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelHigh, result.Level)

	assert.Equal(t, 1, d.key.dayCalls)
	assert.Equal(t, 1, d.key.hourCalls)
	assert.Zero(t, d.detector.callCount())
}

func TestRequestRisk_PositiveTestShownSkipsEverything(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	prev := &models.RiskResult{Level: models.RiskLevelLow, CalculatedAt: testNow.Add(-24 * time.Hour)}
	require.NoError(t, d.state.SetRiskResult(ctx, prev))
	require.NoError(t, d.state.SetBool(ctx, state.KeyPositiveTestShown, true))

	result, err := p.RequestRisk(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelLow, result.Level)

	assert.Zero(t, d.key.dayCalls)
	assert.Zero(t, d.trace.calls)
	assert.Zero(t, d.detector.callCount())
}

func TestRequestRisk_SingleFlight(t *testing.T) {
	d := setupDeps(t)
	block := make(chan struct{})
	d.detector.block = block
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestRisk(ctx, false)
		done <- err
	}()

	require.Eventually(t, func() bool { return d.detector.callCount() > 0 }, time.Second, time.Millisecond)

	_, err := p.RequestRisk(ctx, false)
	require.ErrorIs(t, err, common.ErrRiskProviderRunning)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, p.State())
}

func TestRequestRisk_TimeoutCancelsDetection(t *testing.T) {
	d := setupDeps(t)
	d.detector.block = make(chan struct{}) // never closed, only ctx releases it
	p := newProvider(t, d, 20*time.Millisecond)
	ctx := context.Background()

	var published error
	p.Subscribe(&Consumer{DidFailCalculation: func(err error) { published = err }})

	_, err := p.RequestRisk(ctx, false)
	require.ErrorIs(t, err, common.ErrTimeout)
	assert.ErrorIs(t, published, common.ErrTimeout)
	assert.Equal(t, StateIdle, p.State())
}

func TestRequestRisk_DownloadTimeoutSurfacesAsTimeout(t *testing.T) {
	d := setupDeps(t)
	d.key.dayBlocks = true
	p := newProvider(t, d, 20*time.Millisecond)

	var published error
	p.Subscribe(&Consumer{DidFailCalculation: func(err error) { published = err }})

	_, err := p.RequestRisk(context.Background(), false)
	require.ErrorIs(t, err, common.ErrTimeout)
	assert.ErrorIs(t, published, common.ErrTimeout)
	assert.Zero(t, d.detector.callCount())
}

func TestRequestRisk_DayDownloadFailureIsFatal(t *testing.T) {
	d := setupDeps(t)
	d.key.dayErr = errors.New("cdn down")
	p := newProvider(t, d, 5*time.Second)

	_, err := p.RequestRisk(context.Background(), false)
	require.Error(t, err)
	assert.Zero(t, d.detector.callCount())
}

func TestRequestRisk_HourAndTraceFailuresAreBestEffort(t *testing.T) {
	d := setupDeps(t)
	d.key.hourErr = errors.New("cdn flaky")
	d.trace.err = errors.New("cdn flaky")
	p := newProvider(t, d, 5*time.Second)

	result, err := p.RequestRisk(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, d.detector.callCount())
}

func TestRequestRisk_RiskLoweredTransition(t *testing.T) {
	d := setupDeps(t)
	p := newProvider(t, d, 5*time.Second)
	ctx := context.Background()

	prev := &models.RiskResult{Level: models.RiskLevelHigh, CalculatedAt: testNow.Add(-24 * time.Hour)}
	require.NoError(t, d.state.SetRiskResult(ctx, prev))

	// detector reports nothing: new level is low
	result, err := p.RequestRisk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelLow, result.Level)

	lowered, err := d.state.GetBool(ctx, state.KeyRiskLowered, false)
	require.NoError(t, err)
	assert.True(t, lowered)
}
