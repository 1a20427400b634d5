// Package common defines shared constants and sentinel errors used across
// the synchronization and risk layers. Callers should use errors.Is to
// match sentinel values and errors.As for the structured variants.
package common

import (
	"errors"
	"fmt"
)

var (
	// Transport-level errors.
	ErrNoNetwork = errors.New("no network connection")

	// Protocol-level errors.
	ErrMissingCache = errors.New("not modified but no cached entry")
	ErrMissingETag  = errors.New("response is missing a required etag")

	// Storage-level errors.
	ErrNoDiskSpace    = errors.New("no disk space")
	ErrRevokedPackage = errors.New("package is revoked")
	ErrUnableToWrite  = errors.New("unable to write packages")

	// Pipeline-level errors.
	ErrUncompletedPackages = errors.New("uncompleted packages")

	// Concurrency-level errors (single-flight violations).
	ErrDownloadRunning     = errors.New("download is already running")
	ErrRiskProviderRunning = errors.New("risk provider is already running")

	ErrTimeout = errors.New("operation timed out")
)

// TransportError wraps an underlying network failure so that callers can
// still reach the original cause via errors.Unwrap.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// UnexpectedStatusError reports an HTTP status code that no caching policy
// accounted for. The code is preserved for logging and diagnostics.
type UnexpectedStatusError struct {
	Code int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected server error: %d", e.Code)
}

// DecodingError reports a malformed binary or JSON payload. It never
// triggers a cache fallback.
type DecodingError struct {
	Cause error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", e.Cause)
}

func (e *DecodingError) Unwrap() error {
	return e.Cause
}
