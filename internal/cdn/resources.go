// Package cdn speaks the CDN's distribution API: the day/hour indexes and
// package downloads for diagnosis keys, and discovery plus downloads for
// trace-warning packages. Index and discovery endpoints go through the
// cached resource client; package payloads are fetched directly.
package cdn

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/dmitrijs2005/exposurekit/internal/restclient"
)

type dayIndexResource struct {
	country string
}

func (r dayIndexResource) Locator() restclient.Locator {
	return restclient.Locator{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/version/v1/diagnosis-keys/country/%s/date", r.country),
	}
}

func (r dayIndexResource) Decode(data []byte) ([]string, error) {
	var days []string
	if err := json.Unmarshal(data, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (r dayIndexResource) Policy() restclient.CachingPolicy { return restclient.CachingPolicy{} }

func (r dayIndexResource) Default() ([]string, bool) { return nil, false }

type hourIndexResource struct {
	country string
	day     string
}

func (r hourIndexResource) Locator() restclient.Locator {
	return restclient.Locator{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/version/v1/diagnosis-keys/country/%s/date/%s/hour", r.country, r.day),
	}
}

func (r hourIndexResource) Decode(data []byte) ([]int, error) {
	var hours []int
	if err := json.Unmarshal(data, &hours); err != nil {
		return nil, err
	}
	return hours, nil
}

func (r hourIndexResource) Policy() restclient.CachingPolicy { return restclient.CachingPolicy{} }

func (r hourIndexResource) Default() ([]int, bool) { return nil, false }

// Discovery is the availability window of trace-warning packages on the
// CDN, in unix-hour bucket ids. An empty window has Latest < Oldest.
type Discovery struct {
	Oldest int64 `json:"oldest"`
	Latest int64 `json:"latest"`
}

// Empty reports whether the CDN currently offers no packages at all.
func (d *Discovery) Empty() bool {
	return d.Latest < d.Oldest
}

type discoveryResource struct {
	country string
}

func (r discoveryResource) Locator() restclient.Locator {
	return restclient.Locator{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/version/v1/twp/country/%s/hour", r.country),
	}
}

func (r discoveryResource) Decode(data []byte) (*Discovery, error) {
	var d Discovery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r discoveryResource) Policy() restclient.CachingPolicy { return restclient.CachingPolicy{} }

func (r discoveryResource) Default() (*Discovery, bool) { return nil, false }
