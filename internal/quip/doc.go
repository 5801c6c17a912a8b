// Package quip implements the rate-limited Quip Automation API client.
//
// The client performs bearer-token-authenticated JSON and binary calls and
// transparently absorbs transient failures: HTTP 429, 503, and 504 responses
// are retried after a shared backoff deadline, while every other failure is
// logged and surfaced as ErrUnavailable so callers can skip the affected
// item and keep the larger operation running.
//
// The backoff deadline lives in a Throttle shared by every in-flight call.
// Quip starts returning bare 429 responses after the initial throttle signal,
// often without reset headers, so all concurrent calls must converge on the
// single latest observed deadline instead of each computing its own wait.
package quip
