package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benjaminestes/robots/v2"
)

// DefaultRobotsAgent is the user agent matched against robots.txt groups.
const DefaultRobotsAgent = "pagescout"

// RobotsGate answers whether a URL may be fetched according to its host's
// robots.txt. Each robots.txt is fetched once and cached for the life of
// the gate. RobotsGate is safe for concurrent use.
type RobotsGate struct {
	client  *http.Client
	agent   string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	testers map[string]*robotsEntry
}

// robotsEntry lets concurrent callers wait for the same robots.txt fetch.
type robotsEntry struct {
	ready  chan struct{}
	tester func(string) bool
}

// NewRobotsGate creates a gate. A nil client means http.DefaultClient.
func NewRobotsGate(client *http.Client, agent string, timeout time.Duration, logger *slog.Logger) *RobotsGate {
	if client == nil {
		client = http.DefaultClient
	}
	if agent == "" {
		agent = DefaultRobotsAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsGate{
		client:  client,
		agent:   agent,
		timeout: timeout,
		logger:  logger,
		testers: make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched.
// A URL whose robots.txt location cannot be derived is not allowed.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	robotsURL, err := robots.Locate(rawURL)
	if err != nil {
		return false
	}

	g.mu.Lock()
	entry, ok := g.testers[robotsURL]
	if !ok {
		entry = &robotsEntry{ready: make(chan struct{})}
		g.testers[robotsURL] = entry
	}
	g.mu.Unlock()

	if !ok {
		entry.tester = g.load(ctx, robotsURL)
		close(entry.ready)
	}

	select {
	case <-entry.ready:
		return entry.tester(rawURL)
	case <-ctx.Done():
		return false
	}
}

// load fetches and parses one robots.txt.
// Transport failures are treated as a server error, which disallows the
// whole host.
func (g *RobotsGate) load(ctx context.Context, robotsURL string) func(string) bool {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	unavailable := func() func(string) bool {
		rtxt, _ := robots.From(http.StatusServiceUnavailable, nil) //nolint:errcheck // a nil body never fails to parse
		return rtxt.Tester(g.agent)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return unavailable()
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return unavailable()
	}
	defer resp.Body.Close()

	rtxt, err := robots.From(resp.StatusCode, resp.Body)
	if err != nil {
		g.logger.Debug("robots.txt unreadable", "url", robotsURL, "error", err)
		return unavailable()
	}
	return rtxt.Tester(g.agent)
}
