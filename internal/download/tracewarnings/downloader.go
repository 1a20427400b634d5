// Package tracewarnings discovers, downloads and verifies hourly
// trace-warning packages and hands each verified package to the matcher.
// Metadata about downloaded packages is kept in an hour-indexed table so
// that packages are fetched at most once.
package tracewarnings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/cdn"
	"github.com/dmitrijs2005/exposurekit/internal/common"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/checkins"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/state"
	twrepo "github.com/dmitrijs2005/exposurekit/internal/repositories/tracewarnings"
	"github.com/dmitrijs2005/exposurekit/internal/timex"
	"github.com/dmitrijs2005/exposurekit/internal/verification"
	"github.com/dmitrijs2005/exposurekit/internal/wire"
)

// API is the subset of the CDN client used by this downloader.
type API interface {
	TraceWarningDiscovery(ctx context.Context, country string) (*cdn.Discovery, error)
	TraceWarningPackage(ctx context.Context, country string, id int64) (*cdn.Package, error)
}

// PackageMatcher consumes one verified package and persists its matches.
type PackageMatcher interface {
	Match(ctx context.Context, packageID int64, country string, pkg *models.TraceWarningPackage) (int, error)
}

// ConfigProvider supplies the current remote application configuration.
type ConfigProvider interface {
	AppConfig(ctx context.Context) (*appconfig.Config, error)
}

// Result distinguishes the success shapes of a download cycle. Callers
// may treat an empty CDN differently from a cycle that processed data.
type Result int

const (
	// ResultSuccess: packages were processed (or nothing was pending).
	ResultSuccess Result = iota
	// ResultEmptyAvailability: the CDN offered no packages at all.
	ResultEmptyAvailability
	// ResultEmptySinglePackage: at least one offered package was an empty
	// marker and was discarded without matching.
	ResultEmptySinglePackage
)

// ActivityState is the downloader's lifecycle state.
type ActivityState int

const (
	ActivityIdle ActivityState = iota
	ActivityCheckingForNewPackages
	ActivityDownloading
)

// Downloader orchestrates trace-warning synchronization. Single-flight:
// concurrent callers fail fast with common.ErrDownloadRunning.
type Downloader struct {
	api      API
	meta     twrepo.Repository
	checkins checkins.Repository
	matcher  PackageMatcher
	state    *state.Store
	verifier verification.Verifier
	config   ConfigProvider
	log      logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	activity ActivityState
}

func NewDownloader(
	api API,
	meta twrepo.Repository,
	checkinRepo checkins.Repository,
	matcher PackageMatcher,
	stateStore *state.Store,
	verifier verification.Verifier,
	config ConfigProvider,
	log logging.Logger,
) *Downloader {
	return &Downloader{
		api:      api,
		meta:     meta,
		checkins: checkinRepo,
		matcher:  matcher,
		state:    stateStore,
		verifier: verifier,
		config:   config,
		log:      log,
		now:      time.Now,
	}
}

// State returns the current activity state.
func (d *Downloader) State() ActivityState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activity
}

func (d *Downloader) begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activity != ActivityIdle {
		return common.ErrDownloadRunning
	}
	d.activity = ActivityCheckingForNewPackages
	return nil
}

func (d *Downloader) setActivity(a ActivityState) {
	d.mu.Lock()
	d.activity = a
	d.mu.Unlock()
}

// Start runs one trace-warning download cycle over all countries. The
// last-attempt timestamp is recorded regardless of outcome; the success
// flag reflects whether the cycle completed without a hard error.
func (d *Downloader) Start(ctx context.Context, countries []string) (res Result, err error) {
	if err := d.begin(); err != nil {
		return ResultSuccess, err
	}
	defer d.setActivity(ActivityIdle)

	// the flag must go false on any hard failure, or the next cycle's
	// worthiness check would skip over stale metadata
	defer func() { d.setFlag(ctx, err == nil) }()

	defer func() {
		if err := d.state.SetTime(ctx, state.KeyTraceWarningAttemptAt, d.now().UTC()); err != nil {
			d.log.Error(ctx, "failed to record download attempt", "error", err)
		}
	}()

	count, err := d.checkins.Count(ctx)
	if err != nil {
		return ResultSuccess, fmt.Errorf("failed to count checkins: %w", err)
	}
	if count == 0 {
		// nothing can ever match: drop all cached metadata, skip the network
		d.log.Info(ctx, "no checkins, purging trace warning metadata")
		if err := d.meta.DeleteAll(ctx); err != nil {
			return ResultSuccess, err
		}
		return ResultSuccess, nil
	}

	cfg, err := d.config.AppConfig(ctx)
	if err != nil {
		d.log.Warn(ctx, "app config unavailable, using defaults", "error", err)
		cfg = appconfig.Default()
	}

	if err := d.meta.DeleteByETags(ctx, cfg.RevokedTraceWarningETags); err != nil {
		return ResultSuccess, err
	}

	earliest, ok, err := d.checkins.EarliestStart(ctx)
	if err != nil {
		return ResultSuccess, err
	}
	earliestHour := int64(0)
	if ok {
		earliestHour = timex.UnixHour(earliest)
	}

	lastOK, err := d.state.GetBool(ctx, state.KeyTraceWarningDownloadOK, false)
	if err != nil {
		d.log.Warn(ctx, "failed to read trace warning download flag", "error", err)
	}

	d.setActivity(ActivityDownloading)

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []Result
	)
	for _, country := range countries {
		g.Go(func() error {
			res, err := d.syncCountry(ctx, country, earliestHour, lastOK)
			if err != nil {
				d.log.Error(ctx, "trace warning sync failed", "country", country, "error", err)
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ResultSuccess, err
	}

	return aggregate(results), nil
}

func (d *Downloader) setFlag(ctx context.Context, ok bool) {
	if err := d.state.SetBool(ctx, state.KeyTraceWarningDownloadOK, ok); err != nil {
		d.log.Error(ctx, "failed to persist trace warning download flag", "error", err)
	}
}

func (d *Downloader) syncCountry(ctx context.Context, country string, earliestHour int64, lastOK bool) (Result, error) {
	local, err := d.meta.IDs(ctx, country)
	if err != nil {
		return ResultSuccess, err
	}

	previousHour := timex.UnixHour(d.now()) - 1
	if lastOK && containsID(local, previousHour) {
		d.log.Debug(ctx, "no new trace warning packages expected", "country", country)
		return ResultSuccess, nil
	}

	disc, err := d.api.TraceWarningDiscovery(ctx, country)
	if err != nil {
		return ResultSuccess, fmt.Errorf("discovery for %s: %w: %w", country, common.ErrUncompletedPackages, err)
	}
	if disc.Empty() {
		return ResultEmptyAvailability, nil
	}

	// bound local storage to what could still be matched
	relevant := max(disc.Oldest, earliestHour)
	if err := d.meta.DeleteOlderThan(ctx, country, relevant); err != nil {
		return ResultSuccess, err
	}
	local, err = d.meta.IDs(ctx, country)
	if err != nil {
		return ResultSuccess, err
	}
	localSet := make(map[int64]struct{}, len(local))
	for _, id := range local {
		localSet[id] = struct{}{}
	}

	emptySeen := false
	for id := relevant; id <= disc.Latest; id++ {
		if _, ok := localSet[id]; ok {
			continue
		}

		pkg, err := d.api.TraceWarningPackage(ctx, country, id)
		if err != nil {
			return ResultSuccess, fmt.Errorf("package %s/%d: %w: %w", country, id, common.ErrUncompletedPackages, err)
		}
		if pkg.Empty {
			emptySeen = true
			continue
		}
		if !d.verifier.Verify(pkg.Bin, pkg.Signature) {
			d.log.Error(ctx, "trace warning signature verification failed, discarding",
				"country", country, "id", id, "etag", pkg.ETag)
			continue
		}
		decoded, err := wire.UnmarshalTraceWarningPackage(pkg.Bin)
		if err != nil {
			d.log.Error(ctx, "trace warning package corrupt, discarding",
				"country", country, "id", id, "error", err)
			continue
		}

		// match records reference the metadata row, so it goes in first
		if err := d.meta.Add(ctx, &models.TraceWarningMetadata{ID: id, Country: country, ETag: pkg.ETag}); err != nil {
			return ResultSuccess, err
		}
		n, err := d.matcher.Match(ctx, id, country, decoded)
		if err != nil {
			// drop the row so the package is retried on the next cycle
			if derr := d.meta.DeleteByETags(ctx, []string{pkg.ETag}); derr != nil {
				d.log.Error(ctx, "failed to roll back trace warning metadata",
					"country", country, "id", id, "error", derr)
			}
			return ResultSuccess, fmt.Errorf("matching %s/%d: %w", country, id, err)
		}

		d.log.Debug(ctx, "processed trace warning package",
			"country", country, "id", id, "warnings", len(decoded.Warnings), "matches", n)
	}

	if emptySeen {
		return ResultEmptySinglePackage, nil
	}
	return ResultSuccess, nil
}

func aggregate(results []Result) Result {
	allEmptyAvailability := len(results) > 0
	for _, r := range results {
		if r == ResultEmptySinglePackage {
			return ResultEmptySinglePackage
		}
		if r != ResultEmptyAvailability {
			allEmptyAvailability = false
		}
	}
	if allEmptyAvailability {
		return ResultEmptyAvailability
	}
	return ResultSuccess
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
