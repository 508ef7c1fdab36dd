package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/pagescout/internal/event"
	"github.com/nao1215/pagescout/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of homepages processed at once.
// 1 reproduces a strictly sequential run.
const DefaultConcurrency = 4

// Discoverer resolves one page type for one homepage.
// *discovery.Discoverer implements it.
type Discoverer interface {
	Discover(ctx context.Context, homepage model.Homepage, pt model.PageType) model.PageResult
}

// Orchestrator runs discovery for every (homepage, page type) pair and
// assembles one SiteRecord per homepage.
//
// Design decision: Homepages fan out through errgroup.SetLimit and page types
// of one homepage fan out in a nested group with the same limit because:
//  1. A limit of 1 then processes one (homepage, page type) pair at a time
//  2. Results are written into pre-allocated slots, so output order equals
//     input order without sorting
//  3. Goroutines never return errors, so a failing page never cancels its
//     siblings
type Orchestrator struct {
	// discoverer resolves each page type.
	discoverer Discoverer

	// pageTypes is the validated, ordered page type list.
	pageTypes []model.PageType

	// concurrency is the maximum number of homepages in flight, and of
	// page types in flight per homepage.
	concurrency int

	sink   event.Sink
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the maximum number of homepages processed at once.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSink sets the event sink for site-level events.
func WithSink(sink event.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator for the given page types.
// The page types are validated once here so that record assembly cannot
// fail later.
func NewOrchestrator(d Discoverer, pageTypes []model.PageType, opts ...Option) (*Orchestrator, error) {
	if err := model.ValidatePageTypes(pageTypes); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		discoverer:  d,
		pageTypes:   append([]model.PageType(nil), pageTypes...),
		concurrency: DefaultConcurrency,
		sink:        event.Nop,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil {
		o.sink = event.Nop
	}

	return o, nil
}

// PageTypes returns the configured page types in order.
func (o *Orchestrator) PageTypes() []model.PageType {
	return append([]model.PageType(nil), o.pageTypes...)
}

// Run processes every homepage and returns one record per homepage, in
// input order. It never fails: per-page failures surface as empty text.
func (o *Orchestrator) Run(ctx context.Context, homepages []string) []model.SiteRecord {
	return o.RunWithCallback(ctx, homepages, nil)
}

// RunWithCallback is Run with a callback invoked as each record completes.
// The callback receives the record and the homepage's index in the input.
// It is called from worker goroutines, so it must be safe for concurrent
// use. A nil callback is allowed.
func (o *Orchestrator) RunWithCallback(
	ctx context.Context,
	homepages []string,
	callback func(record model.SiteRecord, index int),
) []model.SiteRecord {
	o.logger.Info("starting run",
		"homepages", len(homepages),
		"pageTypes", len(o.pageTypes),
		"concurrency", o.concurrency,
	)
	startTime := time.Now()

	// Pre-allocate to keep input order.
	records := make([]model.SiteRecord, len(homepages))

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, raw := range homepages {
		g.Go(func() error {
			record := o.processSite(ctx, raw, i, len(homepages))
			records[i] = record
			if callback != nil {
				callback(record, i)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	o.logger.Info("run complete",
		"homepages", len(homepages),
		"elapsed", time.Since(startTime),
	)

	return records
}

// processSite discovers every page type of one homepage.
func (o *Orchestrator) processSite(ctx context.Context, raw string, index, total int) model.SiteRecord {
	raw = strings.TrimSpace(raw)
	o.sink.Emit(ctx, event.Event{Kind: event.SiteStarted, Homepage: raw})
	o.logger.Debug("processing homepage", "homepage", raw, "index", index+1, "total", total)

	homepage, err := model.NewHomepage(raw)
	if err != nil {
		o.sink.Emit(ctx, event.Event{Kind: event.InvalidHomepage, Homepage: raw, Detail: err.Error()})
		return o.invalidRecord(raw)
	}

	results := make([]model.PageResult, len(o.pageTypes))

	// The same limit bounds page types, so a limit of 1 is fully sequential.
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, pt := range o.pageTypes {
		g.Go(func() error {
			result := o.discoverer.Discover(ctx, homepage, pt)
			result.PageType = pt.Name
			results[i] = result
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	record, err := model.NewSiteRecord(raw, o.pageTypes, results)
	if err != nil {
		// Unreachable with validated page types; keep the positional results.
		o.logger.Error("record assembly failed", "homepage", raw, "error", err)
		record = model.SiteRecord{Homepage: raw, Results: results}
	}

	o.sink.Emit(ctx, event.Event{Kind: event.SiteCompleted, Homepage: raw})
	return record
}

// invalidRecord is the record of a homepage that could not be parsed:
// every page type carries the raw input as URL and no text.
func (o *Orchestrator) invalidRecord(raw string) model.SiteRecord {
	results := make([]model.PageResult, len(o.pageTypes))
	for i, pt := range o.pageTypes {
		results[i] = model.PageResult{
			PageType: pt.Name,
			URL:      raw,
			Source:   model.SourceHomepageFallback,
			Outcome:  model.OutcomeUnreachable,
			Strategy: model.StrategyNone,
		}
	}
	return model.SiteRecord{Homepage: raw, Results: results}
}
