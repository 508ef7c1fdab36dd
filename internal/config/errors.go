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
	// ErrNoHomepages is returned when neither arguments, --list nor the
	// config file provide a homepage.
	ErrNoHomepages = errors.New("no homepage specified: provide URLs as arguments, use --list or set homepages in the config file")

	// ErrMissingCredentials is returned when the search API key or engine ID is empty.
	ErrMissingCredentials = errors.New("missing search credentials: set PAGESCOUT_SEARCH_API_KEY and PAGESCOUT_SEARCH_ENGINE_ID")

	// ErrInvalidTimeout is returned when a fetch, search or browser timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetryCap is returned when the direct retry cap is below 1.
	ErrInvalidRetryCap = errors.New("invalid retry cap: must be at least 1")

	// ErrInvalidRetryDelay is returned when the delay between 202 retries is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidMinTextLength is returned when the minimum text length is negative.
	ErrInvalidMinTextLength = errors.New("invalid minimum text length: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidConcurrency is returned when the homepage concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBrowserSessions is returned when the browser is enabled with
	// no session slots.
	ErrInvalidBrowserSessions = errors.New("invalid browser sessions: must be positive")

	// ErrInvalidSearchRate is returned when the search rate or quota is negative.
	ErrInvalidSearchRate = errors.New("invalid search rate: must be non-negative")

	// ErrUnknownFormat is returned when the export format is not supported.
	ErrUnknownFormat = errors.New("unknown output format: use csv, json, markdown or text")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrListNotFound is returned when the homepage list file does not exist.
	ErrListNotFound = errors.New("homepage list file not found")
)
