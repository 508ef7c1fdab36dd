package fetcher

import "errors"

// Fetch errors.
// They are carried inside model.FetchOutcome and never returned by Fetch.
var (
	// ErrUnreachable is wrapped by every Unreachable outcome.
	ErrUnreachable = errors.New("page unreachable")

	// ErrSession is returned by a Renderer that cannot launch a browser,
	// load the page or read its text.
	ErrSession = errors.New("browser session error")

	// ErrUnexpectedStatus is reported for a direct response that is neither
	// 200 nor 202.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrRetryCapReached is reported when every direct attempt answered 202.
	ErrRetryCapReached = errors.New("retry cap reached on HTTP 202")

	// ErrBrowserDisabled is reported when a fetch needed the browser tier
	// but no Renderer is configured.
	ErrBrowserDisabled = errors.New("browser tier disabled")

	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy URL: expected http, https or socks5 scheme with host:port")
)
