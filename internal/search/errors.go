package search

import "errors"

// Search errors.
// They are logged by GoogleClient and never returned to discovery.
var (
	// ErrSearchUnavailable is reported when the provider answers with a
	// non-200 status, a malformed body or a transport error.
	ErrSearchUnavailable = errors.New("search provider unavailable")

	// ErrQuotaExhausted is reported when the shared query budget is spent.
	ErrQuotaExhausted = errors.New("search quota exhausted")

	// ErrMissingCredentials is returned by NewGoogleClient when the API key
	// or the search engine ID is empty.
	ErrMissingCredentials = errors.New("search credentials missing: api key and engine id are required")
)
