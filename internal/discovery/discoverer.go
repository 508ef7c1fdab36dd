package discovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/pagescout/internal/event"
	"github.com/nao1215/pagescout/internal/model"
	"github.com/nao1215/pagescout/internal/search"
)

// Fetcher returns the text of a URL. *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.FetchOutcome
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) model.FetchOutcome

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) model.FetchOutcome {
	return f(ctx, url)
}

// Gate decides whether an eligible candidate may be fetched.
// *RobotsGate implements it.
type Gate interface {
	Allowed(ctx context.Context, url string) bool
}

// rejectAlreadyFailed marks a hit whose fetch already failed during the
// same discovery.
const rejectAlreadyFailed model.RejectReason = "already_failed"

// Discoverer resolves (homepage, page type) pairs to a PageResult.
// It holds no per-call state and is safe for concurrent use.
type Discoverer struct {
	// provider answers domain-scoped queries.
	provider search.Provider

	// fetcher retrieves candidate and fallback pages.
	fetcher Fetcher

	// matcher decides whether a hit is on the homepage's domain.
	matcher model.DomainMatcher

	// gate optionally vetoes eligible candidates (robots.txt).
	gate Gate

	sink   event.Sink
	logger *slog.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithMatcher sets the same-domain rule.
func WithMatcher(m model.DomainMatcher) Option {
	return func(d *Discoverer) {
		d.matcher = m
	}
}

// WithGate sets an extra check applied to eligible candidates.
func WithGate(g Gate) Option {
	return func(d *Discoverer) {
		d.gate = g
	}
}

// WithSink sets the event sink.
func WithSink(sink event.Sink) Option {
	return func(d *Discoverer) {
		d.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// New creates a Discoverer.
func New(provider search.Provider, fetcher Fetcher, opts ...Option) *Discoverer {
	d := &Discoverer{
		provider: provider,
		fetcher:  fetcher,
		sink:     event.Nop,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.sink == nil {
		d.sink = event.Nop
	}

	return d
}

// Discover returns the page of type pt for homepage.
// It never fails: when no search hit yields text, the result is the
// homepage with whatever text the homepage fetch produced.
//
// Design decision: The first successful hit wins immediately because:
//  1. Phrase order encodes priority, so later phrases are only tie-breaks
//  2. Every extra fetch may cost a browser session
//  3. Search hits are already ranked by the provider
func (d *Discoverer) Discover(ctx context.Context, homepage model.Homepage, pt model.PageType) model.PageResult {
	domain := homepage.Domain()
	failed := make(map[string]struct{})

	base := event.Event{Homepage: homepage.URL, PageType: pt.Name}

	for _, phrase := range pt.Phrases {
		if ctx.Err() != nil {
			break
		}

		query := search.BuildQuery(domain, phrase)
		d.emit(ctx, base, event.SearchIssued, "", phrase, query)

		for _, hit := range d.provider.Search(ctx, query) {
			hit = strings.TrimSpace(hit)

			candidate := model.NewPageCandidate(hit, homepage, d.matcher)
			if !candidate.Eligible() {
				d.emit(ctx, base, event.CandidateRejected, hit, phrase, string(candidate.Reason()))
				continue
			}
			if _, seen := failed[hit]; seen {
				d.emit(ctx, base, event.CandidateRejected, hit, phrase, string(rejectAlreadyFailed))
				continue
			}
			if d.gate != nil && !d.gate.Allowed(ctx, hit) {
				d.emit(ctx, base, event.CandidateRejected, hit, phrase, string(model.RejectRobots))
				continue
			}

			outcome := d.fetcher.Fetch(ctx, hit)
			if outcome.OK() {
				d.emit(ctx, base, event.CandidateAccepted, hit, phrase, outcome.Strategy.String())
				return model.PageResult{
					PageType: pt.Name,
					URL:      hit,
					Text:     outcome.Text,
					Source:   model.SourceSearch,
					Phrase:   phrase,
					Outcome:  outcome.Kind,
					Strategy: outcome.Strategy,
				}
			}

			failed[hit] = struct{}{}
			d.emit(ctx, base, event.CandidateFailed, hit, phrase, outcome.Kind.String())
		}
	}

	return d.fallback(ctx, homepage, pt, base)
}

// fallback fetches the homepage itself.
func (d *Discoverer) fallback(ctx context.Context, homepage model.Homepage, pt model.PageType, base event.Event) model.PageResult {
	d.emit(ctx, base, event.FallbackUsed, homepage.URL, "", "")

	outcome := d.fetcher.Fetch(ctx, homepage.URL)
	if !outcome.OK() {
		d.logger.Debug("homepage fallback has no text",
			"homepage", homepage.URL,
			"pageType", pt.Name,
			"outcome", outcome.Kind.String(),
		)
	}

	return model.PageResult{
		PageType: pt.Name,
		URL:      homepage.URL,
		Text:     outcome.Text,
		Source:   model.SourceHomepageFallback,
		Outcome:  outcome.Kind,
		Strategy: outcome.Strategy,
	}
}

func (d *Discoverer) emit(ctx context.Context, base event.Event, kind event.Kind, url, phrase, detail string) {
	e := base
	e.Kind = kind
	e.URL = url
	e.Phrase = phrase
	e.Detail = detail
	d.sink.Emit(ctx, e)
}
