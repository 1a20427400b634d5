package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/common"
	twdownload "github.com/dmitrijs2005/exposurekit/internal/download/tracewarnings"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/matches"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/packages"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/state"
	"github.com/dmitrijs2005/exposurekit/internal/timex"
)

// ActivityState is the provider's lifecycle state, published to
// subscribers on every transition.
type ActivityState int

const (
	StateIdle ActivityState = iota
	StateRiskRequested
	StateDownloading
	StateDetecting
)

// Consumer receives provider callbacks. Nil fields are skipped.
type Consumer struct {
	DidChangeActivityState func(ActivityState)
	DidCalculateRisk       func(*models.RiskResult)
	DidFailCalculation     func(error)
}

// KeyPackageDownloader is the key-package sync entry point.
type KeyPackageDownloader interface {
	StartDayPackagesDownload(ctx context.Context, countries []string) error
	StartHourPackagesDownload(ctx context.Context, countries []string) error
}

// TraceWarningDownloader feeds the presence-risk side of the calculation.
type TraceWarningDownloader interface {
	Start(ctx context.Context, countries []string) (twdownload.Result, error)
}

// ConfigProvider supplies the current remote application configuration.
type ConfigProvider interface {
	AppConfig(ctx context.Context) (*appconfig.Config, error)
}

// Provider runs the full risk cycle: download key packages and trace
// warnings, invoke platform detection, rate the outcome and persist it.
// Single-flight: a request while a cycle is in flight fails with
// common.ErrRiskProviderRunning.
type Provider struct {
	keyPackages   KeyPackageDownloader
	traceWarnings TraceWarningDownloader
	detector      Detector
	store         packages.Store
	matches       matches.Repository
	state         *state.Store
	config        ConfigProvider
	countries     []string
	timeout       time.Duration
	log           logging.Logger
	now           func() time.Time

	mu        sync.Mutex
	activity  ActivityState
	consumers []*Consumer
}

func NewProvider(
	keyPackages KeyPackageDownloader,
	traceWarnings TraceWarningDownloader,
	detector Detector,
	store packages.Store,
	matchRepo matches.Repository,
	stateStore *state.Store,
	config ConfigProvider,
	countries []string,
	timeout time.Duration,
	log logging.Logger,
) *Provider {
	return &Provider{
		keyPackages:   keyPackages,
		traceWarnings: traceWarnings,
		detector:      detector,
		store:         store,
		matches:       matchRepo,
		state:         stateStore,
		config:        config,
		countries:     countries,
		timeout:       timeout,
		log:           log,
		now:           time.Now,
	}
}

// Subscribe registers a consumer for state changes and results.
func (p *Provider) Subscribe(c *Consumer) {
	p.mu.Lock()
	p.consumers = append(p.consumers, c)
	p.mu.Unlock()
}

// State returns the current activity state.
func (p *Provider) State() ActivityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activity
}

func (p *Provider) setState(s ActivityState) {
	p.mu.Lock()
	p.activity = s
	consumers := append([]*Consumer(nil), p.consumers...)
	p.mu.Unlock()
	for _, c := range consumers {
		if c.DidChangeActivityState != nil {
			c.DidChangeActivityState(s)
		}
	}
}

func (p *Provider) publishResult(r *models.RiskResult) {
	p.mu.Lock()
	consumers := append([]*Consumer(nil), p.consumers...)
	p.mu.Unlock()
	for _, c := range consumers {
		if c.DidCalculateRisk != nil {
			c.DidCalculateRisk(r)
		}
	}
}

func (p *Provider) publishFailure(err error) {
	p.mu.Lock()
	consumers := append([]*Consumer(nil), p.consumers...)
	p.mu.Unlock()
	for _, c := range consumers {
		if c.DidFailCalculation != nil {
			c.DidFailCalculation(err)
		}
	}
}

// RequestRisk runs one risk cycle. userInitiated forces a fresh detection
// even inside the detection-interval window.
func (p *Provider) RequestRisk(ctx context.Context, userInitiated bool) (*models.RiskResult, error) {
	p.mu.Lock()
	if p.activity != StateIdle {
		p.mu.Unlock()
		return nil, common.ErrRiskProviderRunning
	}
	p.activity = StateRiskRequested
	p.mu.Unlock()
	p.setState(StateRiskRequested)
	defer p.setState(StateIdle)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.runCycle(ctx, userInitiated)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = common.ErrTimeout
		}
		p.publishFailure(err)
		return nil, err
	}
	p.publishResult(result)
	return result, nil
}

func (p *Provider) runCycle(ctx context.Context, userInitiated bool) (*models.RiskResult, error) {
	prev, err := p.state.RiskResult(ctx)
	if err != nil {
		p.log.Warn(ctx, "failed to load previous risk result", "error", err)
	}

	positiveShown, err := p.state.GetBool(ctx, state.KeyPositiveTestShown, false)
	if err != nil {
		return nil, err
	}
	if positiveShown {
		// a shown positive test supersedes any risk rating
		if prev == nil {
			return nil, errors.New("positive test shown but no previous risk result")
		}
		p.log.Info(ctx, "positive test already shown, reusing previous risk result")
		return prev, nil
	}

	cfg, err := p.config.AppConfig(ctx)
	if err != nil {
		p.log.Warn(ctx, "app config unavailable, using defaults", "error", err)
		cfg = appconfig.Default()
	}

	p.setState(StateDownloading)

	if err := p.keyPackages.StartDayPackagesDownload(ctx, p.countries); err != nil {
		return nil, fmt.Errorf("day package download: %w", err)
	}
	if err := p.keyPackages.StartHourPackagesDownload(ctx, p.countries); err != nil {
		// best effort: detection runs on day packages alone
		p.log.Warn(ctx, "hour package download failed", "error", err)
	}
	if _, err := p.traceWarnings.Start(ctx, p.countries); err != nil {
		p.log.Warn(ctx, "trace warning download failed", "error", err)
	}

	keysSubmitted, err := p.state.GetBool(ctx, state.KeyKeysSubmitted, false)
	if err != nil {
		return nil, err
	}
	if keysSubmitted {
		// plausible deniability: keep downloading, never detect
		if prev == nil {
			return nil, errors.New("keys submitted but no previous risk result")
		}
		p.log.Info(ctx, "keys already submitted, skipping detection")
		return prev, nil
	}

	fingerprint, err := p.packageFingerprint(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil && !userInitiated {
		lastFP, err := p.state.GetString(ctx, state.KeyPackageFingerprint)
		if err != nil {
			return nil, err
		}
		if fingerprint == lastFP && p.now().Sub(prev.CalculatedAt) < cfg.DetectionInterval() {
			p.log.Debug(ctx, "detection interval not elapsed and no new packages, reusing result")
			return prev, nil
		}
	}

	p.setState(StateDetecting)

	windows, err := p.detector.Detect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("exposure detection: %w", err)
	}
	ms, err := p.matches.All(ctx)
	if err != nil {
		return nil, err
	}

	result := Calculate(windows, ms, cfg, p.now())

	lowered := prev != nil && prev.Level == models.RiskLevelHigh && result.Level == models.RiskLevelLow
	if err := p.state.SetBool(ctx, state.KeyRiskLowered, lowered); err != nil {
		return nil, err
	}
	if err := p.state.SetRiskResult(ctx, result); err != nil {
		return nil, err
	}
	if err := p.state.SetString(ctx, state.KeyPackageFingerprint, fingerprint); err != nil {
		return nil, err
	}

	p.log.Info(ctx, "risk calculated",
		"level", result.Level.String(),
		"dates", len(result.PerDateLevel),
		"most_recent_high", result.MostRecentDateWithLevel(models.RiskLevelHigh))
	return result, nil
}

// packageFingerprint hashes the current package inventory. A changed
// fingerprint means new packages arrived since the last detection.
func (p *Provider) packageFingerprint(ctx context.Context) (string, error) {
	countries := append([]string(nil), p.countries...)
	sort.Strings(countries)

	h := sha256.New()
	today := timex.DayKey(p.now())
	for _, country := range countries {
		days, err := p.store.AllDays(ctx, country)
		if err != nil {
			return "", err
		}
		for _, day := range days {
			fmt.Fprintf(h, "%s/%s\n", country, day)
		}
		hours, err := p.store.Hours(ctx, country, today)
		if err != nil {
			return "", err
		}
		for _, hour := range hours {
			fmt.Fprintf(h, "%s/%s/%s\n", country, today, strconv.Itoa(hour))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
