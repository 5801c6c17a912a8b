// Package log provides secure logging functionality with automatic
// sanitization of sensitive information, built on top of the standard slog
// package.
//
// The export tool handles a personal access token with full account access.
// The SecureHandler automatically sanitizes sensitive information in log
// output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs,
//     long alphanumeric API keys)
//   - Session identifiers and credentials
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of the token in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("request sent",
//	    "authorization", "Bearer abc123",  // Will be masked
//	    "path", "/threads/THREAD1",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
