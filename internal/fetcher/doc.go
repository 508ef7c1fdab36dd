// Package fetcher retrieves the visible text of a single URL.
//
// Fetcher owns a small escalation state machine:
//
//	stateDirect  -> stateBrowser -> stateTerminal
//
// The direct tier is a plain HTTP GET with browser-like headers. An HTTP 202
// interstitial is retried after a fixed delay up to a fixed cap; any other
// failure, a bot-challenge fingerprint or text that is too short to be real
// content moves the fetch to the browser tier. The browser tier renders the
// page in one exclusively owned headless session and is always terminal.
//
// Escalation only moves forward and every state has a fixed cap, so every
// call returns in bounded time with one of three outcomes: Success,
// EmptyOrBlocked or Unreachable. Errors never escape Fetch; they are carried
// in model.FetchOutcome.Err for logging.
package fetcher
