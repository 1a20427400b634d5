// Package cache persists HTTP response bodies keyed by a request
// fingerprint, together with the ETag and fetch timestamp needed for
// conditional GET requests.
package cache

import (
	"context"
	"time"
)

// Entry is one cached response. It is overwritten on every successful 200
// and only read on 304.
type Entry struct {
	Fingerprint string
	Data        []byte
	ETag        string
	FetchedAt   time.Time
}

// Repository stores cache entries. Get returns (nil, nil) when no entry
// exists for the fingerprint.
type Repository interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, fingerprint string) error
}
