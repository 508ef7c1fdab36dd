package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pagescout/internal/discovery"
	"github.com/nao1215/pagescout/internal/event"
	"github.com/nao1215/pagescout/internal/fetcher"
	"github.com/nao1215/pagescout/internal/model"
	"github.com/nao1215/pagescout/internal/search"
)

// discoverFunc adapts a function to Discoverer.
type discoverFunc func(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult

func (f discoverFunc) Discover(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult {
	return f(ctx, h, pt)
}

func echoDiscoverer() Discoverer {
	return discoverFunc(func(_ context.Context, h model.Homepage, pt model.PageType) model.PageResult {
		return model.PageResult{
			PageType: pt.Name,
			URL:      strings.TrimSuffix(h.URL, "/") + "/" + strings.ToLower(pt.Name),
			Text:     pt.Name + " of " + h.Domain(),
			Outcome:  model.OutcomeSuccess,
		}
	})
}

// TestNewOrchestrator tests the constructor.
func TestNewOrchestrator(t *testing.T) {
	t.Parallel()

	t.Run("creates orchestrator with defaults", func(t *testing.T) {
		t.Parallel()

		o, err := NewOrchestrator(echoDiscoverer(), model.DefaultPageTypes())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, o.concurrency)
		}
		if o.logger == nil || o.sink == nil {
			t.Error("expected non-nil logger and sink")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		o, _ := NewOrchestrator(echoDiscoverer(), model.DefaultPageTypes(), WithConcurrency(0))
		if o.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency, got %d", o.concurrency)
		}
	})

	t.Run("rejects invalid page types", func(t *testing.T) {
		t.Parallel()

		if _, err := NewOrchestrator(echoDiscoverer(), nil); !errors.Is(err, model.ErrNoPageTypes) {
			t.Errorf("expected ErrNoPageTypes, got %v", err)
		}
	})

	t.Run("copies page types", func(t *testing.T) {
		t.Parallel()

		types := model.DefaultPageTypes()
		o, _ := NewOrchestrator(echoDiscoverer(), types)
		types[0].Name = "Changed"
		if o.PageTypes()[0].Name != "About" {
			t.Error("orchestrator should not alias the caller's slice")
		}
	})
}

// TestOrchestratorRun tests record assembly and ordering.
func TestOrchestratorRun(t *testing.T) {
	t.Parallel()

	t.Run("one record per homepage in input order", func(t *testing.T) {
		t.Parallel()

		// Earlier homepages take longer so completion order is reversed.
		d := discoverFunc(func(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult {
			delay := map[string]time.Duration{"a.org": 30 * time.Millisecond, "b.org": 15 * time.Millisecond}[h.Domain()]
			time.Sleep(delay)
			return echoDiscoverer().Discover(ctx, h, pt)
		})
		o, _ := NewOrchestrator(d, model.DefaultPageTypes(), WithConcurrency(3))

		homepages := []string{"https://a.org/", "https://b.org/", "https://c.org/"}
		records := o.Run(context.Background(), homepages)

		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		for i, rec := range records {
			if rec.Homepage != homepages[i] {
				t.Errorf("record %d homepage = %q, want %q", i, rec.Homepage, homepages[i])
			}
			if names := rec.PageTypeNames(); len(names) != 2 || names[0] != "About" || names[1] != "Programs" {
				t.Errorf("record %d page types = %v", i, names)
			}
		}
		if r, _ := records[1].Result("Programs"); r.URL != "https://b.org/programs" {
			t.Errorf("unexpected programs URL: %q", r.URL)
		}
	})

	t.Run("invalid homepage still produces a record", func(t *testing.T) {
		t.Parallel()

		rec := &event.Recorder{}
		o, _ := NewOrchestrator(echoDiscoverer(), model.DefaultPageTypes(), WithSink(rec))

		records := o.Run(context.Background(), []string{"ftp://files.example.org/", "https://ok.org/"})

		bad := records[0]
		if bad.Homepage != "ftp://files.example.org/" || len(bad.Results) != 2 {
			t.Fatalf("unexpected record: %+v", bad)
		}
		for _, r := range bad.Results {
			if r.URL != "ftp://files.example.org/" || r.Text != "" || r.Outcome != model.OutcomeUnreachable {
				t.Errorf("unexpected result: %+v", r)
			}
		}
		if records[1].Results[0].Text != "About of ok.org" {
			t.Errorf("valid homepage affected: %+v", records[1])
		}
		if rec.Count(event.InvalidHomepage) != 1 || rec.Count(event.SiteStarted) != 2 || rec.Count(event.SiteCompleted) != 1 {
			t.Errorf("unexpected events: %+v", rec.Events())
		}
	})

	t.Run("page type name is enforced", func(t *testing.T) {
		t.Parallel()

		d := discoverFunc(func(_ context.Context, h model.Homepage, _ model.PageType) model.PageResult {
			return model.PageResult{PageType: "wrong", URL: h.URL}
		})
		o, _ := NewOrchestrator(d, model.DefaultPageTypes())

		records := o.Run(context.Background(), []string{"https://example.org/"})
		if names := records[0].PageTypeNames(); names[0] != "About" || names[1] != "Programs" {
			t.Errorf("unexpected names: %v", names)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		var mu sync.Mutex
		seen := make(map[string]bool)

		d := discoverFunc(func(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult {
			mu.Lock()
			first := !seen[h.Domain()]
			seen[h.Domain()] = true
			mu.Unlock()
			if first {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
			}
			return echoDiscoverer().Discover(ctx, h, pt)
		})
		o, _ := NewOrchestrator(d, []model.PageType{{Name: "About", Phrases: []string{"about"}}}, WithConcurrency(2))

		homepages := make([]string, 8)
		for i := range homepages {
			homepages[i] = fmt.Sprintf("https://site%d.org/", i)
		}
		o.Run(context.Background(), homepages)

		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent sites, got %d", peak.Load())
		}
	})

	t.Run("concurrency one is sequential", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var order []string
		d := discoverFunc(func(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult {
			mu.Lock()
			order = append(order, h.Domain())
			mu.Unlock()
			return echoDiscoverer().Discover(ctx, h, pt)
		})
		o, _ := NewOrchestrator(d, []model.PageType{{Name: "About", Phrases: []string{"about"}}}, WithConcurrency(1))

		o.Run(context.Background(), []string{"https://a.org", "https://b.org", "https://c.org"})

		if strings.Join(order, ",") != "a.org,b.org,c.org" {
			t.Errorf("unexpected order: %v", order)
		}
	})

	t.Run("concurrency one runs page types one at a time", func(t *testing.T) {
		t.Parallel()

		var inFlight, peak atomic.Int32
		var mu sync.Mutex
		var order []string
		d := discoverFunc(func(ctx context.Context, h model.Homepage, pt model.PageType) model.PageResult {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			mu.Lock()
			order = append(order, h.Domain()+"/"+pt.Name)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			return echoDiscoverer().Discover(ctx, h, pt)
		})
		o, _ := NewOrchestrator(d, model.DefaultPageTypes(), WithConcurrency(1))

		records := o.Run(context.Background(), []string{"https://a.org", "https://b.org"})

		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if got := peak.Load(); got != 1 {
			t.Errorf("peak concurrent discoveries = %d, want 1", got)
		}
		want := "a.org/About,a.org/Programs,b.org/About,b.org/Programs"
		if strings.Join(order, ",") != want {
			t.Errorf("unexpected order: %v", order)
		}
	})
}

// TestOrchestratorRunWithCallback tests streaming of completed records.
func TestOrchestratorRunWithCallback(t *testing.T) {
	t.Parallel()

	o, _ := NewOrchestrator(echoDiscoverer(), model.DefaultPageTypes())

	var mu sync.Mutex
	got := make(map[int]string)
	homepages := []string{"https://a.org/", "https://b.org/"}

	records := o.RunWithCallback(context.Background(), homepages, func(rec model.SiteRecord, index int) {
		mu.Lock()
		defer mu.Unlock()
		got[index] = rec.Homepage
	})

	if len(records) != 2 || len(got) != 2 {
		t.Fatalf("expected 2 records and 2 callbacks, got %d and %d", len(records), len(got))
	}
	for i, h := range homepages {
		if got[i] != h {
			t.Errorf("callback index %d = %q, want %q", i, got[i], h)
		}
	}
}

// TestOrchestratorSiblingIsolation runs the full stack and checks that a
// browser failure on one page type leaves the sibling page type intact.
func TestOrchestratorSiblingIsolation(t *testing.T) {
	t.Parallel()

	provider := search.ProviderFunc(func(_ context.Context, query string) []string {
		switch query {
		case "site:example.org about":
			return []string{"https://example.org/about"}
		case "site:example.org programs":
			return []string{"https://example.org/programs"}
		}
		return nil
	})

	// Both pages need the browser; rendering /programs crashes.
	f := fetcher.New(
		fetcher.WithHTTPClient(blockedClient()),
		fetcher.WithRetryDelay(time.Millisecond),
		fetcher.WithRenderer(fetcher.RendererFunc(func(_ context.Context, url string) (string, error) {
			if strings.HasSuffix(url, "/programs") || url == "https://example.org/" {
				return "", fmt.Errorf("%w: chrome crashed", fetcher.ErrSession)
			}
			return "Example Org was founded in 1990...", nil
		})),
	)

	d := discovery.New(provider, f)
	types := []model.PageType{
		{Name: "About", Phrases: []string{"about"}},
		{Name: "Programs", Phrases: []string{"programs"}},
	}
	o, err := NewOrchestrator(d, types)
	if err != nil {
		t.Fatal(err)
	}

	records := o.Run(context.Background(), []string{"https://example.org/"})
	rec := records[0]

	about, _ := rec.Result("About")
	if about.URL != "https://example.org/about" || about.Text != "Example Org was founded in 1990..." {
		t.Errorf("about result affected by sibling failure: %+v", about)
	}

	programs, _ := rec.Result("Programs")
	if programs.URL != "https://example.org/" || programs.Text != "" || programs.Source != model.SourceHomepageFallback {
		t.Errorf("unexpected programs result: %+v", programs)
	}
}

// blockedClient answers every request with 403 Forbidden.
func blockedClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusForbidden)
		resp := rec.Result()
		resp.Request = r
		return resp, nil
	})}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
