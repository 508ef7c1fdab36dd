package event

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Kind identifies what happened.
type Kind string

// Event kinds emitted by the pipeline.
const (
	// SiteStarted is emitted when the orchestrator begins a homepage.
	SiteStarted Kind = "site_started"

	// SiteCompleted is emitted when a homepage's record is assembled.
	SiteCompleted Kind = "site_completed"

	// InvalidHomepage is emitted when a homepage cannot be parsed.
	InvalidHomepage Kind = "invalid_homepage"

	// SearchIssued is emitted before each domain-scoped query.
	SearchIssued Kind = "search_issued"

	// CandidateRejected is emitted for a hit that fails eligibility.
	CandidateRejected Kind = "candidate_rejected"

	// CandidateFailed is emitted when an eligible hit's fetch is not a success.
	CandidateFailed Kind = "candidate_failed"

	// CandidateAccepted is emitted for the winning hit.
	CandidateAccepted Kind = "candidate_accepted"

	// FallbackUsed is emitted when discovery falls back to the homepage.
	FallbackUsed Kind = "fallback_used"

	// FetchRetried is emitted when a direct fetch is retried after HTTP 202.
	FetchRetried Kind = "fetch_retried"

	// FetchEscalated is emitted when a fetch moves to the browser tier.
	FetchEscalated Kind = "fetch_escalated"

	// FetchCompleted is emitted with every terminal fetch outcome.
	FetchCompleted Kind = "fetch_completed"
)

// Event is one progress or diagnostic notification.
// Fields that do not apply to a Kind are left empty.
type Event struct {
	Kind     Kind
	Homepage string
	PageType string
	URL      string
	Phrase   string
	Detail   string
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Emit calls f(ctx, e).
func (f SinkFunc) Emit(ctx context.Context, e Event) {
	f(ctx, e)
}

// Nop is a Sink that discards every event.
var Nop Sink = SinkFunc(func(context.Context, Event) {})

// MultiSink fans events out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a Sink that forwards to every non-nil sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{sinks: make([]Sink, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit forwards e to every sink.
func (m *MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}

// LogSink writes events to a structured logger.
// Rejections, retries and escalations are logged at debug level; fallbacks
// and invalid homepages at warn level; everything else at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs e.
func (s *LogSink) Emit(ctx context.Context, e Event) {
	level := slog.LevelInfo
	switch e.Kind {
	case CandidateRejected, CandidateFailed, FetchRetried, FetchEscalated, FetchCompleted, SearchIssued:
		level = slog.LevelDebug
	case FallbackUsed, InvalidHomepage:
		level = slog.LevelWarn
	}

	attrs := []any{"event", string(e.Kind)}
	for _, kv := range [][2]string{
		{"homepage", e.Homepage},
		{"pageType", e.PageType},
		{"url", e.URL},
		{"phrase", e.Phrase},
		{"detail", e.Detail},
	} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	s.logger.Log(ctx, level, "pipeline event", attrs...)
}

// ProgressSink prints a human-readable line for the events a user follows
// on a terminal: site start, accepted candidates and fallbacks.
type ProgressSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewProgressSink creates a ProgressSink writing to out.
func NewProgressSink(out io.Writer) *ProgressSink {
	return &ProgressSink{out: out}
}

// Emit prints e when it is user-facing.
func (s *ProgressSink) Emit(_ context.Context, e Event) {
	var line string
	switch e.Kind {
	case SiteStarted:
		line = fmt.Sprintf("Processing website: %s", e.Homepage)
	case CandidateAccepted:
		line = fmt.Sprintf("  %s page: %s", e.PageType, e.URL)
	case FallbackUsed:
		line = fmt.Sprintf("  No %s page found via search; falling back to homepage.", e.PageType)
	case InvalidHomepage:
		line = fmt.Sprintf("Skipping invalid homepage %q: %s", e.Homepage, e.Detail)
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

// Recorder is a Sink that keeps every event in memory.
// It is intended for tests and for post-run summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}
