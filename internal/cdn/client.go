package cdn

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/exposurekit/internal/common"
	"github.com/dmitrijs2005/exposurekit/internal/restclient"
	"github.com/dmitrijs2005/exposurekit/internal/wire"
)

// EmptyPackageHeader marks a published-but-empty package. The CDN keeps
// the slot so that clients do not re-request it every cycle.
const EmptyPackageHeader = "X-Empty-Package"

// Package is one downloaded package: the raw signed payload, its detached
// signature and the ETag identifying this publication. Empty packages
// carry neither payload nor signature.
type Package struct {
	Bin       []byte
	Signature []byte
	ETag      string
	Empty     bool
}

// Client wraps the distribution endpoints of one CDN.
type Client struct {
	rest *restclient.Client
}

func NewClient(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

// DayIndex returns the ISO day keys available for the country.
func (c *Client) DayIndex(ctx context.Context, country string) ([]string, error) {
	return restclient.Load(ctx, c.rest, dayIndexResource{country: country})
}

// HourIndex returns the hours available for the country and day.
func (c *Client) HourIndex(ctx context.Context, country, day string) ([]int, error) {
	return restclient.Load(ctx, c.rest, hourIndexResource{country: country, day: day})
}

// TraceWarningDiscovery returns the availability window of trace-warning
// packages for the country.
func (c *Client) TraceWarningDiscovery(ctx context.Context, country string) (*Discovery, error) {
	return restclient.Load(ctx, c.rest, discoveryResource{country: country})
}

// DayPackage downloads the key package for one day.
func (c *Client) DayPackage(ctx context.Context, country, day string) (*Package, error) {
	path := fmt.Sprintf("/version/v1/diagnosis-keys/country/%s/date/%s", country, day)
	return c.fetchPackage(ctx, path)
}

// HourPackage downloads the key package for one hour of a day.
func (c *Client) HourPackage(ctx context.Context, country, day string, hour int) (*Package, error) {
	path := fmt.Sprintf("/version/v1/diagnosis-keys/country/%s/date/%s/hour/%d", country, day, hour)
	return c.fetchPackage(ctx, path)
}

// TraceWarningPackage downloads one trace-warning package by its unix-hour
// bucket id.
func (c *Client) TraceWarningPackage(ctx context.Context, country string, id int64) (*Package, error) {
	path := fmt.Sprintf("/version/v1/twp/country/%s/hour/%d", country, id)
	return c.fetchPackage(ctx, path)
}

func (c *Client) fetchPackage(ctx context.Context, path string) (*Package, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rest.BaseURL()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.rest.HTTP().Do(req)
	if err != nil {
		return nil, &common.TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &common.UnexpectedStatusError{Code: resp.StatusCode}
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return nil, fmt.Errorf("package %s: %w", path, common.ErrMissingETag)
	}

	if resp.Header.Get(EmptyPackageHeader) == "1" {
		return &Package{ETag: etag, Empty: true}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.TransportError{Cause: err}
	}

	envelope, err := wire.UnmarshalEnvelope(body)
	if err != nil {
		return nil, &common.DecodingError{Cause: err}
	}

	return &Package{
		Bin:       envelope.Bin,
		Signature: envelope.Signature,
		ETag:      etag,
	}, nil
}
