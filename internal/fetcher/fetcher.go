package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/nao1215/pagescout/internal/event"
	"github.com/nao1215/pagescout/internal/model"
)

const (
	// DefaultTimeout bounds one direct attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultRetryCap is the maximum number of direct attempts on HTTP 202.
	DefaultRetryCap = 2

	// DefaultRetryDelay is the wait between 202 retries.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMinTextLength is the shortest direct text, in runes, accepted
	// as real content.
	DefaultMinTextLength = 50

	// DefaultMaxBodySize caps the bytes read from a direct response.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultUserAgent is sent by the direct tier.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// state is a step of the escalation state machine.
type state int

const (
	stateDirect state = iota
	stateBrowser
	stateTerminal
)

// String returns the state name used in logs.
func (s state) String() string {
	switch s {
	case stateDirect:
		return "direct"
	case stateBrowser:
		return "browser"
	case stateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Fetcher returns the visible text of a URL using an escalating strategy.
// It is safe for concurrent use; all per-call state lives on the stack.
type Fetcher struct {
	// client performs the direct-tier requests.
	client *http.Client

	// renderer is the browser tier. Nil disables it.
	renderer Renderer

	// timeout bounds each direct attempt.
	timeout time.Duration

	// retryCap is the maximum number of direct attempts while the server
	// keeps answering 202.
	retryCap int

	// retryDelay is the wait between 202 retries.
	retryDelay time.Duration

	// minTextLength is the shortest accepted direct text, in runes.
	minTextLength int

	// maxBodySize caps the bytes read from a direct response.
	maxBodySize int64

	// userAgent is the User-Agent header of the direct tier.
	userAgent string

	// detector recognizes challenge interstitials.
	detector Detector

	sink   event.Sink
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client of the direct tier.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithRenderer enables the browser tier. A nil renderer disables it.
func WithRenderer(r Renderer) Option {
	return func(f *Fetcher) {
		f.renderer = r
	}
}

// WithTimeout sets the per-attempt timeout of the direct tier.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRetryCap sets the maximum number of direct attempts on HTTP 202.
// Values below 1 are treated as 1.
func WithRetryCap(n int) Option {
	return func(f *Fetcher) {
		f.retryCap = n
	}
}

// WithRetryDelay sets the wait between 202 retries.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithMinTextLength sets the shortest accepted direct text, in runes.
func WithMinTextLength(n int) Option {
	return func(f *Fetcher) {
		f.minTextLength = n
	}
}

// WithMaxBodySize caps the bytes read from a direct response.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithUserAgent sets the User-Agent header of the direct tier.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithFingerprints replaces the challenge fingerprint set.
func WithFingerprints(patterns []string) Option {
	return func(f *Fetcher) {
		f.detector = NewDetector(patterns)
	}
}

// WithSink sets the event sink for retries, escalations and outcomes.
func WithSink(sink event.Sink) Option {
	return func(f *Fetcher) {
		f.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. Without WithRenderer the browser tier is disabled.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:        http.DefaultClient,
		timeout:       DefaultTimeout,
		retryCap:      DefaultRetryCap,
		retryDelay:    DefaultRetryDelay,
		minTextLength: DefaultMinTextLength,
		maxBodySize:   DefaultMaxBodySize,
		userAgent:     DefaultUserAgent,
		detector:      NewDetector(DefaultFingerprints),
		sink:          event.Nop,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.retryCap < 1 {
		f.retryCap = 1
	}
	if f.sink == nil {
		f.sink = event.Nop
	}

	return f
}

// BrowserEnabled reports whether the browser tier is configured.
func (f *Fetcher) BrowserEnabled() bool {
	return f.renderer != nil
}

// directResult is what the direct tier hands to the next state.
type directResult struct {
	outcome    model.FetchOutcome
	escalation model.Escalation
	attempts   int
	err        error
}

// Fetch returns the text of rawURL. It never returns an error; failures are
// reported through the outcome kind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) model.FetchOutcome {
	var (
		current = stateDirect
		direct  directResult
		outcome model.FetchOutcome
	)

	for current != stateTerminal {
		switch current {
		case stateDirect:
			direct = f.fetchDirect(ctx, rawURL)
			if direct.escalation == model.EscalationNone {
				outcome = direct.outcome
				current = stateTerminal
				continue
			}
			f.sink.Emit(ctx, event.Event{
				Kind:   event.FetchEscalated,
				URL:    rawURL,
				Detail: direct.escalation.String(),
			})
			current = stateBrowser

		case stateBrowser:
			outcome = f.fetchBrowser(ctx, rawURL, direct)
			current = stateTerminal
		}
	}

	outcome.DirectAttempts = direct.attempts
	outcome.Escalation = direct.escalation

	f.sink.Emit(ctx, event.Event{
		Kind:   event.FetchCompleted,
		URL:    rawURL,
		Detail: outcome.Kind.String() + " via " + outcome.Strategy.String(),
	})
	if outcome.Err != nil {
		f.logger.Debug("fetch failed", "url", rawURL, "outcome", outcome.Kind.String(), "error", outcome.Err)
	}

	return outcome
}

// fetchDirect runs the direct tier including its 202 retries.
// A zero escalation in the result means the outcome is terminal.
func (f *Fetcher) fetchDirect(ctx context.Context, rawURL string) directResult {
	for attempt := 1; ; attempt++ {
		status, body, contentType, err := f.get(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return directResult{
					outcome:  model.Unreachable(model.StrategyDirect, fmt.Errorf("%w: %w", ErrUnreachable, ctx.Err())),
					attempts: attempt,
				}
			}
			return directResult{escalation: model.EscalationHardFailure, attempts: attempt, err: err}
		}

		switch status {
		case http.StatusAccepted:
			if attempt >= f.retryCap {
				return directResult{
					escalation: model.EscalationTransient,
					attempts:   attempt,
					err:        fmt.Errorf("%w: %d attempts", ErrRetryCapReached, attempt),
				}
			}
			f.sink.Emit(ctx, event.Event{
				Kind:   event.FetchRetried,
				URL:    rawURL,
				Detail: fmt.Sprintf("attempt %d of %d", attempt+1, f.retryCap),
			})
			if err := sleep(ctx, f.retryDelay); err != nil {
				return directResult{
					outcome:  model.Unreachable(model.StrategyDirect, fmt.Errorf("%w: %w", ErrUnreachable, err)),
					attempts: attempt,
				}
			}

		case http.StatusOK:
			return f.classify(body, contentType, attempt)

		default:
			return directResult{
				escalation: model.EscalationHardFailure,
				attempts:   attempt,
				err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, status),
			}
		}
	}
}

// classify decides whether a 200 body is content or needs the browser.
func (f *Fetcher) classify(body []byte, contentType string, attempt int) directResult {
	text, err := ExtractText(body, contentType)
	if err != nil {
		return directResult{escalation: model.EscalationHardFailure, attempts: attempt, err: err}
	}

	if pattern, ok := f.detector.Match(text, string(body)); ok {
		return directResult{
			escalation: model.EscalationChallenge,
			attempts:   attempt,
			err:        fmt.Errorf("challenge fingerprint %q", pattern),
		}
	}

	if n := utf8.RuneCountInString(text); n < f.minTextLength {
		return directResult{
			escalation: model.EscalationTooShort,
			attempts:   attempt,
			err:        fmt.Errorf("text length %d below %d", n, f.minTextLength),
		}
	}

	return directResult{outcome: model.Success(text, model.StrategyDirect), attempts: attempt}
}

// fetchBrowser runs the browser tier. Its outcome is always terminal.
func (f *Fetcher) fetchBrowser(ctx context.Context, rawURL string, direct directResult) model.FetchOutcome {
	if f.renderer == nil {
		switch direct.escalation {
		case model.EscalationChallenge, model.EscalationTooShort:
			return model.EmptyOrBlocked(model.StrategyDirect, direct.escalation)
		default:
			return model.Unreachable(model.StrategyDirect, fmt.Errorf("%w: %w: %w", ErrUnreachable, ErrBrowserDisabled, direct.err))
		}
	}

	text, err := f.renderer.Render(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, ErrSession) {
			err = fmt.Errorf("%w: %w", ErrSession, err)
		}
		return model.Unreachable(model.StrategyBrowser, fmt.Errorf("%w: %w", ErrUnreachable, err))
	}

	text = NormalizeText(text)
	if text == "" {
		return model.EmptyOrBlocked(model.StrategyBrowser, direct.escalation)
	}
	return model.Success(text, model.StrategyBrowser)
}

// get performs one direct attempt bounded by the per-attempt timeout.
func (f *Fetcher) get(ctx context.Context, rawURL string) (int, []byte, string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // best effort
		return resp.StatusCode, nil, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return 0, nil, "", err
	}

	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
