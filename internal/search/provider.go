package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider issues a domain-scoped query and returns result URLs in the
// provider's relevance order. Each call is a fresh query; nothing is cached.
// An empty slice means "no hits", whatever the reason.
type Provider interface {
	Search(ctx context.Context, query string) []string
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, query string) []string

// Search calls f(ctx, query).
func (f ProviderFunc) Search(ctx context.Context, query string) []string {
	return f(ctx, query)
}

// BuildQuery returns the domain-scoped query for a candidate phrase.
func BuildQuery(domain, phrase string) string {
	return "site:" + domain + " " + strings.TrimSpace(phrase)
}

// NewLimiter creates the token bucket shared by every search caller.
// A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Quota tracks how many queries may still be issued in the current window.
// A Quota with a non-positive limit is unlimited. Quota is safe for
// concurrent use.
type Quota struct {
	mu     sync.Mutex
	limit  int
	used   int
	window time.Duration
	start  time.Time
	now    func() time.Time
}

// NewQuota creates a quota of limit queries per window.
// Google's free tier is 100 queries per day.
func NewQuota(limit int, window time.Duration) *Quota {
	return &Quota{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Take consumes one query. It returns false when the budget is spent.
func (q *Quota) Take() bool {
	if q == nil || q.limit <= 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if q.start.IsZero() || (q.window > 0 && now.Sub(q.start) >= q.window) {
		q.start = now
		q.used = 0
	}
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Remaining returns how many queries are left in the current window,
// or -1 when the quota is unlimited.
func (q *Quota) Remaining() int {
	if q == nil || q.limit <= 0 {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.window > 0 && !q.start.IsZero() && q.now().Sub(q.start) >= q.window {
		return q.limit
	}
	return q.limit - q.used
}
