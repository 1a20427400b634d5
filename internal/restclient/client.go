package restclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/exposurekit/internal/common"
	"github.com/dmitrijs2005/exposurekit/internal/logging"
	"github.com/dmitrijs2005/exposurekit/internal/repositories/cache"
)

// Client executes resource loads against a base URL, persisting response
// bodies in the cache repository keyed by the resource fingerprint.
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Repository
	log     logging.Logger
	now     func() time.Time
}

func New(baseURL string, httpClient *http.Client, cacheRepo cache.Repository, log logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		cache:   cacheRepo,
		log:     log,
		now:     time.Now,
	}
}

// BaseURL returns the configured CDN root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTP exposes the underlying transport for non-cached downloads.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// Load executes a conditional GET for the resource and returns its decoded
// model.
//
// On a 200 the body is decoded and the cache entry overwritten. On a 304
// the cached body is decoded; a 304 without a cache entry is a
// client/server cache-state mismatch and surfaces as
// common.ErrMissingCache. Transport failures and policy-declared status
// codes fall back to the default model, then the cached model, before the
// error propagates. Decoding failures never fall back.
func Load[M any](ctx context.Context, c *Client, res Resource[M]) (M, error) {
	var zero M

	loc := res.Locator()
	fingerprint := loc.Fingerprint()

	cached, err := c.cache.Get(ctx, fingerprint)
	if err != nil {
		// a broken cache read degrades to an uncached request
		c.log.Warn(ctx, "cache lookup failed", "path", loc.Path, "error", err)
		cached = nil
	}

	method := loc.Method
	if method == "" {
		method = http.MethodGet
	}
	u := c.baseURL + loc.Path
	if enc := loc.Query.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to build request: %w", err)
	}
	if cached != nil && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		transportErr := &common.TransportError{Cause: err}
		if res.Policy().onNoNetwork() {
			if m, ok := res.Default(); ok {
				return m, nil
			}
			if cached != nil {
				return decodeCached(res, cached)
			}
		}
		return zero, transportErr
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return zero, &common.TransportError{Cause: err}
		}
		model, err := res.Decode(body)
		if err != nil {
			return zero, &common.DecodingError{Cause: err}
		}
		entry := &cache.Entry{
			Fingerprint: fingerprint,
			Data:        body,
			ETag:        resp.Header.Get("ETag"),
			FetchedAt:   c.now().UTC(),
		}
		if err := c.cache.Put(ctx, entry); err != nil {
			// the fresh model is still valid, only revalidation is lost
			c.log.Warn(ctx, "cache write failed", "path", loc.Path, "error", err)
		}
		return model, nil

	case resp.StatusCode == http.StatusNotModified:
		if cached == nil {
			c.log.Error(ctx, "not modified without cached entry", "path", loc.Path)
			return zero, common.ErrMissingCache
		}
		return decodeCached(res, cached)

	case res.Policy().onStatusCode(resp.StatusCode):
		if m, ok := res.Default(); ok {
			return m, nil
		}
		if cached != nil {
			return decodeCached(res, cached)
		}
		return zero, &common.UnexpectedStatusError{Code: resp.StatusCode}

	default:
		return zero, &common.UnexpectedStatusError{Code: resp.StatusCode}
	}
}

func decodeCached[M any](res Resource[M], entry *cache.Entry) (M, error) {
	m, err := res.Decode(entry.Data)
	if err != nil {
		var zero M
		return zero, &common.DecodingError{Cause: err}
	}
	return m, nil
}
