// Package keypackages synchronizes the local day/hour key-package store
// with the CDN: it diffs the server index against the local store,
// downloads only the missing packages, verifies their signatures and
// persists them atomically per country.
package keypackages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/exposurekit/internal/appconfig"
	"github.com/dmitrijs2005/exposurekit/internal/cdn"
	"github.com/dmitrijs2005/exposurekit/internal/common"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/models"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/packages"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/state"
	"github.com/dmitrijs2005/exposurekit/internal/timex"
	"github.com/dmitrijs2005/exposurekit/internal/verification"
)

// API is the subset of the CDN client used by this downloader.
type API interface {
	DayIndex(ctx context.Context, country string) ([]string, error)
	HourIndex(ctx context.Context, country, day string) ([]int, error)
	DayPackage(ctx context.Context, country, day string) (*cdn.Package, error)
	HourPackage(ctx context.Context, country, day string, hour int) (*cdn.Package, error)
}

// ConfigProvider supplies the current remote application configuration.
type ConfigProvider interface {
	AppConfig(ctx context.Context) (*appconfig.Config, error)
}

// ActivityState is the downloader's lifecycle state.
type ActivityState int

const (
	ActivityIdle ActivityState = iota
	ActivityCheckingForNewPackages
	ActivityDownloading
)

// Downloader orchestrates day and hour key-package synchronization. At
// most one download (of either mode) runs at a time; concurrent callers
// fail fast with common.ErrDownloadRunning.
type Downloader struct {
	api      API
	store    packages.Store
	state    *state.Store
	verifier verification.Verifier
	config   ConfigProvider
	log      logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	activity ActivityState
}

func NewDownloader(api API, store packages.Store, stateStore *state.Store, verifier verification.Verifier, config ConfigProvider, log logging.Logger) *Downloader {
	return &Downloader{
		api:      api,
		store:    store,
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

func (d *Downloader) appConfig(ctx context.Context) *appconfig.Config {
	cfg, err := d.config.AppConfig(ctx)
	if err != nil {
		d.log.Warn(ctx, "app config unavailable, using defaults", "error", err)
		return appconfig.Default()
	}
	return cfg
}

// StartDayPackagesDownload synchronizes the day packages of every country
// concurrently. Per-country errors are logged; the first one is returned.
func (d *Downloader) StartDayPackagesDownload(ctx context.Context, countries []string) error {
	if err := d.begin(); err != nil {
		return err
	}
	defer d.setActivity(ActivityIdle)

	cfg := d.appConfig(ctx)
	d.store.UpdateRevocationList(cfg.RevokedKeyPackageETags)

	lastOK, err := d.state.GetBool(ctx, state.KeyDayDownloadOK, false)
	if err != nil {
		d.log.Warn(ctx, "failed to read day download flag", "error", err)
	}

	d.setActivity(ActivityDownloading)

	var g errgroup.Group
	for _, country := range countries {
		g.Go(func() error {
			if err := d.syncDays(ctx, country, cfg, lastOK); err != nil {
				d.log.Error(ctx, "day package sync failed", "country", country, "error", err)
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	if serr := d.state.SetBool(ctx, state.KeyDayDownloadOK, err == nil); serr != nil {
		d.log.Error(ctx, "failed to persist day download flag", "error", serr)
	}
	return err
}

// StartHourPackagesDownload synchronizes the hour packages of the current
// day for every country.
func (d *Downloader) StartHourPackagesDownload(ctx context.Context, countries []string) error {
	if err := d.begin(); err != nil {
		return err
	}
	defer d.setActivity(ActivityIdle)

	cfg := d.appConfig(ctx)
	d.store.UpdateRevocationList(cfg.RevokedKeyPackageETags)

	lastOK, err := d.state.GetBool(ctx, state.KeyHourDownloadOK, false)
	if err != nil {
		d.log.Warn(ctx, "failed to read hour download flag", "error", err)
	}

	d.setActivity(ActivityDownloading)

	var g errgroup.Group
	for _, country := range countries {
		g.Go(func() error {
			if err := d.syncHours(ctx, country, lastOK); err != nil {
				d.log.Error(ctx, "hour package sync failed", "country", country, "error", err)
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	if serr := d.state.SetBool(ctx, state.KeyHourDownloadOK, err == nil); serr != nil {
		d.log.Error(ctx, "failed to persist hour download flag", "error", serr)
	}
	return err
}

func (d *Downloader) syncDays(ctx context.Context, country string, cfg *appconfig.Config, lastOK bool) error {
	now := d.now().UTC()
	yesterday := timex.DayKey(now.AddDate(0, 0, -1))
	cutoff := timex.DayKey(now.AddDate(0, 0, -cfg.DayPackageValidityDays))

	if err := d.store.DeleteDaysOlderThan(ctx, country, cutoff); err != nil {
		return err
	}

	local, err := d.store.AllDays(ctx, country)
	if err != nil {
		return err
	}

	// nothing can be new: the freshest expected bucket is present and the
	// previous run completed
	if lastOK && contains(local, yesterday) {
		d.log.Debug(ctx, "no new day packages expected", "country", country)
		return nil
	}

	server, err := d.api.DayIndex(ctx, country)
	if err != nil {
		return fmt.Errorf("day index for %s: %w: %w", country, common.ErrUncompletedPackages, err)
	}

	serverSet := toSet(server)
	for _, day := range local {
		// server-side retention expired it; drop our copy
		if _, ok := serverSet[day]; !ok {
			if err := d.store.DeleteDayPackage(ctx, country, day); err != nil {
				return err
			}
		}
	}

	localSet := toSet(local)
	batch := map[string]models.PackageBlob{}
	for _, day := range server {
		// the cutoff comparison below relies on ISO date ordering, so a
		// malformed index entry cannot be aged out and must not be fetched
		if _, err := timex.ParseDayKey(day); err != nil {
			d.log.Warn(ctx, "ignoring malformed day index entry", "country", country, "error", err)
			continue
		}
		if _, ok := localSet[day]; ok {
			continue
		}
		if day < cutoff {
			continue
		}

		pkg, err := d.api.DayPackage(ctx, country, day)
		if err != nil {
			return fmt.Errorf("day package %s/%s: %w: %w", country, day, common.ErrUncompletedPackages, err)
		}
		blob, ok := d.verifyAndUnpack(ctx, pkg, country, day)
		if !ok {
			continue
		}
		batch[day] = *blob
	}

	if len(batch) == 0 {
		return nil
	}
	if err := d.store.AddFetchedDays(ctx, country, batch); err != nil {
		return persistError(country, err)
	}
	return nil
}

func (d *Downloader) syncHours(ctx context.Context, country string, lastOK bool) error {
	now := d.now().UTC()
	today := timex.DayKey(now)
	previousHour := now.Add(-time.Hour)

	// hour packages for finished days are covered by day packages
	if err := d.store.DeleteHourPackagesExcept(ctx, country, today); err != nil {
		return err
	}

	local, err := d.store.Hours(ctx, country, today)
	if err != nil {
		return err
	}

	expectedHour := -1
	if timex.DayKey(previousHour) == today {
		expectedHour = previousHour.Hour()
	}
	if lastOK && expectedHour >= 0 && containsInt(local, expectedHour) {
		d.log.Debug(ctx, "no new hour packages expected", "country", country)
		return nil
	}

	server, err := d.api.HourIndex(ctx, country, today)
	if err != nil {
		return fmt.Errorf("hour index for %s: %w: %w", country, common.ErrUncompletedPackages, err)
	}

	serverSet := toIntSet(server)
	for _, hour := range local {
		if _, ok := serverSet[hour]; !ok {
			if err := d.store.DeleteHourPackage(ctx, country, today, hour); err != nil {
				return err
			}
		}
	}

	localSet := toIntSet(local)
	batch := map[int]models.PackageBlob{}
	for _, hour := range server {
		if _, ok := localSet[hour]; ok {
			continue
		}

		pkg, err := d.api.HourPackage(ctx, country, today, hour)
		if err != nil {
			return fmt.Errorf("hour package %s/%s/%d: %w: %w", country, today, hour, common.ErrUncompletedPackages, err)
		}
		blob, ok := d.verifyAndUnpack(ctx, pkg, country, fmt.Sprintf("%s/%d", today, hour))
		if !ok {
			continue
		}
		batch[hour] = *blob
	}

	if len(batch) == 0 {
		return nil
	}
	if err := d.store.AddFetchedHours(ctx, country, today, batch); err != nil {
		return persistError(country, err)
	}
	return nil
}

// verifyAndUnpack validates a single downloaded package. Empty packages,
// signature failures and corrupt payloads discard just that package; the
// sibling downloads continue.
func (d *Downloader) verifyAndUnpack(ctx context.Context, pkg *cdn.Package, country, bucket string) (*models.PackageBlob, bool) {
	if pkg.Empty {
		d.log.Debug(ctx, "skipping empty package", "country", country, "bucket", bucket)
		return nil, false
	}
	if !d.verifier.Verify(pkg.Bin, pkg.Signature) {
		d.log.Error(ctx, "package signature verification failed, discarding",
			"country", country, "bucket", bucket, "etag", pkg.ETag)
		return nil, false
	}
	bin, err := gunzip(pkg.Bin)
	if err != nil {
		d.log.Error(ctx, "package payload corrupt, discarding",
			"country", country, "bucket", bucket, "error", err)
		return nil, false
	}
	return &models.PackageBlob{Bin: bin, Signature: pkg.Signature, ETag: pkg.ETag}, true
}

func persistError(country string, err error) error {
	if errors.Is(err, common.ErrNoDiskSpace) || errors.Is(err, common.ErrRevokedPackage) {
		return fmt.Errorf("country %s: %w", country, err)
	}
	return fmt.Errorf("country %s: %w: %w", country, common.ErrUnableToWrite, err)
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func toSet(xs []string) map[string]struct{} {
	s := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}

func toIntSet(xs []int) map[int]struct{} {
	s := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}
