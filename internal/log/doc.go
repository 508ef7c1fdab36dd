// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The SecureHandler masks:
//   - Attributes whose key names a secret (api_key, cookie, authorization, ...)
//   - Values that look like credentials (bearer tokens, JWTs, long API keys)
//   - The key and cx query parameters of search URLs, wherever they appear in
//     a string or error value
//
// The last rule lets components log request URLs and transport errors
// (which embed the URL) without leaking the search credentials.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("search failed", "url", "https://www.googleapis.com/customsearch/v1?q=x&key=abc")
//	// url=https://www.googleapis.com/customsearch/v1?q=x&key=***REDACTED***
//	slog.SetDefault(logger)
package log
