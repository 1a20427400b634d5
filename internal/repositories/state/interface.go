// Package state persists the small pieces of durable download and risk
// state: per-mode "last download succeeded" flags, the last-attempt
// timestamp and the current risk-calculation result.
package state

import "context"

// Repository is a plain key-value store. Get returns (nil, nil) when the
// key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
