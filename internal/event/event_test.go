package event

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestMultiSink tests fan-out and nil filtering.
func TestMultiSink(t *testing.T) {
	t.Parallel()

	a, b := &Recorder{}, &Recorder{}
	m := NewMultiSink(a, nil, b)

	m.Emit(context.Background(), Event{Kind: SiteStarted, Homepage: "https://example.org/"})

	if a.Count(SiteStarted) != 1 || b.Count(SiteStarted) != 1 {
		t.Errorf("expected both sinks to receive the event, got %d and %d", a.Count(SiteStarted), b.Count(SiteStarted))
	}
}

// TestProgressSink tests the terminal progress lines.
func TestProgressSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewProgressSink(&buf)
	ctx := context.Background()

	s.Emit(ctx, Event{Kind: SiteStarted, Homepage: "https://example.org/"})
	s.Emit(ctx, Event{Kind: CandidateRejected, URL: "https://other.org/"})
	s.Emit(ctx, Event{Kind: FallbackUsed, PageType: "Programs"})

	out := buf.String()
	if !strings.Contains(out, "Processing website: https://example.org/") {
		t.Errorf("missing site line: %q", out)
	}
	if strings.Contains(out, "other.org") {
		t.Errorf("rejections should not be printed: %q", out)
	}
	if !strings.Contains(out, "No Programs page found via search") {
		t.Errorf("missing fallback line: %q", out)
	}
}

// TestLogSink tests that events reach the logger with their attributes.
func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewLogSink(logger)

	s.Emit(context.Background(), Event{Kind: FetchEscalated, URL: "https://example.org/about", Detail: "challenge_detected"})

	out := buf.String()
	for _, want := range []string{"event=fetch_escalated", "url=https://example.org/about", "detail=challenge_detected", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "phrase=") {
		t.Errorf("empty fields should be omitted: %q", out)
	}
}

// TestRecorderConcurrent tests that the recorder is safe for concurrent use.
func TestRecorderConcurrent(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Emit(context.Background(), Event{Kind: SearchIssued})
		}()
	}
	wg.Wait()

	if got := len(r.Events()); got != 50 {
		t.Errorf("expected 50 events, got %d", got)
	}
}
