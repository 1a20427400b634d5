// Package appconfig loads the remote application configuration: the
// trace-warning revocation list and the tuning parameters of the risk
// pipeline. The configuration is served from the CDN and cached like any
// other resource; when the network is down the compiled-in default keeps
// the pipeline running.
package appconfig

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dmitrijs2005/exposurekit/internal/restclient"
)

// Config is the remote application configuration.
type Config struct {
	// RevokedTraceWarningETags lists ETags of trace-warning packages that
	// must be discarded even if already downloaded.
	RevokedTraceWarningETags []string `json:"revokedTraceWarningETags"`

	// RevokedKeyPackageETags lists ETags of day/hour key packages rejected
	// at write time.
	RevokedKeyPackageETags []string `json:"revokedKeyPackageETags"`

	// DetectionIntervalMinutes is the minimum spacing between two
	// exposure-detection runs.
	DetectionIntervalMinutes int `json:"detectionIntervalMinutes"`

	// DayPackageValidityDays is the sliding validity window for day
	// packages.
	DayPackageValidityDays int `json:"dayPackageValidityDays"`

	// ProximityScoreThreshold is the per-date weighted minutes-of-exposure
	// score above which a date is rated high risk.
	ProximityScoreThreshold int `json:"proximityScoreThreshold"`

	// PresenceRiskThreshold is the warning transmission-risk level at or
	// above which a check-in match rates its date high risk.
	PresenceRiskThreshold int `json:"presenceRiskThreshold"`
}

// DetectionInterval returns the tuning parameter as a duration.
func (c *Config) DetectionInterval() time.Duration {
	return time.Duration(c.DetectionIntervalMinutes) * time.Minute
}

// Default is the compiled-in fallback used until the first successful
// download.
func Default() *Config {
	return &Config{
		DetectionIntervalMinutes: 4 * 60,
		DayPackageValidityDays:   14,
		ProximityScoreThreshold:  900,
		PresenceRiskThreshold:    6,
	}
}

type resource struct{}

func (resource) Locator() restclient.Locator {
	return restclient.Locator{Method: http.MethodGet, Path: "/version/v1/app-config"}
}

func (resource) Decode(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (resource) Policy() restclient.CachingPolicy {
	return restclient.CachingPolicy{UseCacheOn: []restclient.Trigger{
		restclient.TriggerNoNetwork(),
		restclient.TriggerStatusCode(http.StatusNotFound),
	}}
}

func (resource) Default() (*Config, bool) {
	return Default(), true
}

// Provider fetches the current configuration through the cached resource
// client.
type Provider struct {
	client *restclient.Client
}

func NewProvider(client *restclient.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) AppConfig(ctx context.Context) (*Config, error) {
	return restclient.Load(ctx, p.client, resource{})
}
