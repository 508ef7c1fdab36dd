package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Renderer loads one URL in a browser and returns its visible text.
// Each call owns its session exclusively and tears it down before
// returning. Failures to launch, load or read wrap ErrSession.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, url string) (string, error)

// Render calls f(ctx, url).
func (f RendererFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

const (
	// DefaultSettleDelay is the wait after navigation for client-side rendering.
	DefaultSettleDelay = 5 * time.Second

	// DefaultSessionTimeout bounds one whole browser session.
	DefaultSessionTimeout = 45 * time.Second

	// DefaultMaxSessions caps concurrent browser sessions.
	DefaultMaxSessions = 2
)

// challengeScript clicks the usual human-verification controls that live in
// the page itself. Cross-origin challenge frames cannot be reached from here;
// the settle delay that follows gives auto-solving challenges time to pass.
const challengeScript = `(() => {
	const selectors = [
		'#challenge-stage input[type="checkbox"]',
		'#challenge-form input[type="submit"]',
		'.cf-turnstile input[type="checkbox"]',
		'input[type="checkbox"][name*="captcha" i]',
		'button[id*="verify" i]'
	];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el) { el.click(); return true; }
	}
	return false;
})()`

// innerTextScript reads the rendered text of the document body.
const innerTextScript = `document.body ? document.body.innerText : ""`

// ChromeRenderer renders pages with a headless Chrome driven by chromedp.
// A new browser process is started for every Render call and killed when
// the call returns.
//
// Design decision: We launch one browser per fetch rather than sharing tabs
// because:
//  1. A challenge page can poison cookies and storage for later fetches
//  2. A crashed renderer only fails the fetch that owned it
//  3. Teardown on every exit path is a single deferred cancel
type ChromeRenderer struct {
	// sem caps concurrent browser processes.
	sem *semaphore.Weighted

	// settleDelay is waited after navigation and again after a challenge click.
	settleDelay time.Duration

	// sessionTimeout bounds the whole session, launch included.
	sessionTimeout time.Duration

	// solveChallenge enables the best-effort challenge click.
	solveChallenge bool

	// allocOpts are the Chrome launch options.
	allocOpts []chromedp.ExecAllocatorOption

	logger *slog.Logger
}

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*chromeSettings)

type chromeSettings struct {
	maxSessions    int
	settleDelay    time.Duration
	sessionTimeout time.Duration
	solveChallenge bool
	headless       bool
	execPath       string
	userAgent      string
	proxyServer    string
	logger         *slog.Logger
}

// WithMaxSessions caps concurrent browser sessions.
func WithMaxSessions(n int) ChromeOption {
	return func(s *chromeSettings) {
		s.maxSessions = n
	}
}

// WithSettleDelay sets the wait after navigation.
func WithSettleDelay(d time.Duration) ChromeOption {
	return func(s *chromeSettings) {
		s.settleDelay = d
	}
}

// WithSessionTimeout bounds one whole browser session.
func WithSessionTimeout(d time.Duration) ChromeOption {
	return func(s *chromeSettings) {
		s.sessionTimeout = d
	}
}

// WithSolveChallenge enables or disables the challenge click.
func WithSolveChallenge(enabled bool) ChromeOption {
	return func(s *chromeSettings) {
		s.solveChallenge = enabled
	}
}

// WithHeadless toggles headless mode. Headed mode is useful for debugging.
func WithHeadless(headless bool) ChromeOption {
	return func(s *chromeSettings) {
		s.headless = headless
	}
}

// WithExecPath sets the Chrome binary. Empty means autodetect.
func WithExecPath(path string) ChromeOption {
	return func(s *chromeSettings) {
		s.execPath = path
	}
}

// WithBrowserUserAgent overrides the browser's User-Agent.
func WithBrowserUserAgent(ua string) ChromeOption {
	return func(s *chromeSettings) {
		s.userAgent = ua
	}
}

// WithBrowserProxy routes browser traffic through proxyServer.
func WithBrowserProxy(proxyServer string) ChromeOption {
	return func(s *chromeSettings) {
		s.proxyServer = proxyServer
	}
}

// WithBrowserLogger sets the logger for challenge diagnostics.
func WithBrowserLogger(logger *slog.Logger) ChromeOption {
	return func(s *chromeSettings) {
		s.logger = logger
	}
}

// NewChromeRenderer creates a ChromeRenderer.
// No browser is started until the first Render call.
func NewChromeRenderer(opts ...ChromeOption) *ChromeRenderer {
	s := chromeSettings{
		maxSessions:    DefaultMaxSessions,
		settleDelay:    DefaultSettleDelay,
		sessionTimeout: DefaultSessionTimeout,
		solveChallenge: true,
		headless:       true,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxSessions < 1 {
		s.maxSessions = 1
	}

	allocOpts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+4)
	allocOpts = append(allocOpts, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if s.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.execPath))
	}
	if s.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(s.userAgent))
	}
	if s.proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(s.proxyServer))
	}

	return &ChromeRenderer{
		sem:            semaphore.NewWeighted(int64(s.maxSessions)),
		settleDelay:    s.settleDelay,
		sessionTimeout: s.sessionTimeout,
		solveChallenge: s.solveChallenge,
		allocOpts:      allocOpts,
		logger:         s.logger,
	}
}

// Render loads url in a fresh headless browser and returns document.body.innerText.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for a browser slot: %w", ErrSession, err)
	}
	defer r.sem.Release(1)

	if r.sessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.sessionTimeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(r.settleDelay),
	); err != nil {
		return "", fmt.Errorf("%w: load %s: %w", ErrSession, url, err)
	}

	if r.solveChallenge {
		r.tryChallenge(browserCtx, url)
	}

	var text string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(innerTextScript, &text)); err != nil {
		return "", fmt.Errorf("%w: read text of %s: %w", ErrSession, url, err)
	}

	return text, nil
}

// tryChallenge clicks a verification control if one is present.
// Failure is logged and otherwise ignored.
func (r *ChromeRenderer) tryChallenge(ctx context.Context, url string) {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(challengeScript, &clicked)); err != nil {
		r.logger.Debug("challenge click failed", "url", url, "error", err)
		return
	}
	if !clicked {
		return
	}

	r.logger.Debug("challenge control clicked", "url", url)
	if err := chromedp.Run(ctx, chromedp.Sleep(r.settleDelay)); err != nil {
		r.logger.Debug("settle after challenge failed", "url", url, "error", err)
	}
}
