package model

import "errors"

// Model validation errors.
// They are returned by the constructors in this package so that callers can
// tell a malformed input apart from a transport failure with errors.Is().
var (
	// ErrEmptyURL is returned when a homepage or candidate URL is blank.
	ErrEmptyURL = errors.New("empty URL")

	// ErrInvalidURL is returned when a URL cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https are allowed")

	// ErrNotAbsoluteURL is returned when a search hit is a relative reference.
	ErrNotAbsoluteURL = errors.New("URL is not absolute")

	// ErrInvalidPageType is returned when a page type has no name or no phrases.
	ErrInvalidPageType = errors.New("invalid page type: name and at least one phrase are required")

	// ErrNoPageTypes is returned when no page type is configured.
	ErrNoPageTypes = errors.New("at least one page type is required")

	// ErrDuplicatePageType is returned when two page types share a name.
	ErrDuplicatePageType = errors.New("duplicate page type")

	// ErrMissingPageResult is returned when a site record lacks a result
	// for one of the configured page types.
	ErrMissingPageResult = errors.New("missing page result")

	// ErrDuplicatePageResult is returned when a site record would carry two
	// results for the same page type.
	ErrDuplicatePageResult = errors.New("duplicate page result")

	// ErrUnknownPageType is returned when a result names a page type that
	// is not configured.
	ErrUnknownPageType = errors.New("unknown page type")
)
