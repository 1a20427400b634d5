// Package restclient is a generic HTTP layer with conditional-GET
// caching. A resource declares where it lives, how its body is decoded,
// which failures may fall back to cached or default data, and the client
// executes the request against that declaration. Caching policy is chosen
// per call site, never globally.
package restclient

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Locator identifies a remote resource. Its fingerprint keys the cache.
type Locator struct {
	Method string
	Path   string
	Query  url.Values
}

// Fingerprint returns a stable hash of the request shape.
func (l Locator) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(l.Method))
	h.Write([]byte{0})
	h.Write([]byte(l.Path))
	h.Write([]byte{0})
	h.Write([]byte(l.Query.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}

// Trigger is one condition under which a resource accepts fallback data
// instead of failing.
type Trigger struct {
	noNetwork  bool
	statusCode int
}

// TriggerNoNetwork falls back when the transport fails entirely.
func TriggerNoNetwork() Trigger {
	return Trigger{noNetwork: true}
}

// TriggerStatusCode falls back on the given HTTP status code.
func TriggerStatusCode(code int) Trigger {
	return Trigger{statusCode: code}
}

// CachingPolicy is the set of fallback triggers a resource opts into.
// The zero value never falls back.
type CachingPolicy struct {
	UseCacheOn []Trigger
}

func (p CachingPolicy) onNoNetwork() bool {
	for _, t := range p.UseCacheOn {
		if t.noNetwork {
			return true
		}
	}
	return false
}

func (p CachingPolicy) onStatusCode(code int) bool {
	for _, t := range p.UseCacheOn {
		if t.statusCode == code {
			return true
		}
	}
	return false
}

// Resource declares one cached remote resource with model type M.
// Default returns (zero, false) when the resource has no default model.
type Resource[M any] interface {
	Locator() Locator
	Decode(data []byte) (M, error)
	Policy() CachingPolicy
	Default() (M, bool)
}
