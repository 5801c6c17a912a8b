package quip

import "errors"

// Client errors.
//
// Design decision: transient exhaustion and permanent fetch failures both
// collapse into ErrUnavailable. Callers handle them identically (skip the
// item, continue the run), so a finer-grained taxonomy would only be noise
// at the call sites. Authentication failure is the one fatal class and gets
// its own sentinel.
var (
	// ErrUnavailable is returned when a resource could not be fetched:
	// a non-retryable HTTP status, a transport failure, or retry-ceiling
	// exhaustion on a throttled endpoint. Callers must treat it as
	// "skip this item, continue the larger operation".
	ErrUnavailable = errors.New("resource unavailable")

	// ErrUnauthorized is returned by CheckUser when the access token is
	// invalid or expired. This is the only error class that aborts a run.
	ErrUnauthorized = errors.New("access token is invalid or expired")
)
