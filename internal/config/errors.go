package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoToken is returned when no access token is configured.
	ErrNoToken = errors.New("no access token: set --token or the token field in .quip-export")

	// ErrInvalidFormat is returned for an unknown base output format.
	ErrInvalidFormat = errors.New("invalid format: must be one of html, docx, pdf")

	// ErrInvalidConcurrency is returned when the concurrency bound is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRequestInterval is returned when the request interval is
	// negative. Use 0 to disable the politeness limiter.
	ErrInvalidRequestInterval = errors.New("invalid request interval: must be non-negative")

	// ErrCommentsRequireHTML is returned when comments are requested for a
	// binary export format, which cannot carry them.
	ErrCommentsRequireHTML = errors.New("comments are only supported with the html format")

	// ErrImagesRequireHTML is returned when embedded images are requested
	// for a binary export format.
	ErrImagesRequireHTML = errors.New("embedded images are only supported with the html format")
)
