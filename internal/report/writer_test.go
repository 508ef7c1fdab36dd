package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagescout/internal/model"
)

// createTestExport creates an export with one found page, one homepage
// fallback and one invalid homepage.
func createTestExport() *Export {
	export := NewExport(model.DefaultPageTypes(), []model.SiteRecord{
		{
			Homepage: "https://example.org/",
			Results: []model.PageResult{
				{
					PageType: "About", URL: "https://example.org/about",
					Text:   `Example Org, "the school", was founded in 1990.`,
					Source: model.SourceSearch, Phrase: "about us",
					Outcome: model.OutcomeSuccess, Strategy: model.StrategyDirect,
				},
				{
					PageType: "Programs", URL: "https://example.org/",
					Text:    "Welcome to Example Org | Home",
					Source:  model.SourceHomepageFallback,
					Outcome: model.OutcomeSuccess, Strategy: model.StrategyBrowser,
				},
			},
		},
		{
			Homepage: "ftp://bad.example.org/",
			Results: []model.PageResult{
				{PageType: "About", URL: "ftp://bad.example.org/", Source: model.SourceHomepageFallback, Outcome: model.OutcomeUnreachable},
				{PageType: "Programs", URL: "ftp://bad.example.org/", Source: model.SourceHomepageFallback, Outcome: model.OutcomeUnreachable},
			},
		},
	})
	export.RunID = "3f1c2a9e-0000-4000-8000-000000000001"
	export.GeneratedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return export
}

// TestCSVWriter tests the spreadsheet export.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes BOM, header and one row per homepage", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write(createTestExport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data := buf.Bytes()
		if !bytes.HasPrefix(data, utf8BOM) {
			t.Fatal("expected UTF-8 BOM")
		}

		rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header + 2 rows, got %d", len(rows))
		}

		wantHeader := "Homepage,About_Page,About_Content,Programs_Page,Programs_Content"
		if got := strings.Join(rows[0], ","); got != wantHeader {
			t.Errorf("header = %q, want %q", got, wantHeader)
		}
		if rows[1][2] != `Example Org, "the school", was founded in 1990.` {
			t.Errorf("content with comma and quotes not preserved: %q", rows[1][2])
		}
		if rows[2][0] != "ftp://bad.example.org/" || rows[2][1] != "ftp://bad.example.org/" || rows[2][2] != "" {
			t.Errorf("unexpected invalid-homepage row: %v", rows[2])
		}
	})

	t.Run("BOM can be disabled", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf, WithBOM(false)).Write(createTestExport()); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(buf.String(), "Homepage,") {
			t.Errorf("expected output to start with the header, got %q", buf.String()[:10])
		}
	})

	t.Run("empty export still has a header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		export := NewExport(model.DefaultPageTypes(), nil)
		if _, err := NewCSVWriter(&buf, WithBOM(false)).Write(export); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "Homepage,About_Page,About_Content,Programs_Page,Programs_Content" {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("missing result leaves empty cells", func(t *testing.T) {
		t.Parallel()

		export := &Export{
			PageTypes: []string{"About", "Programs"},
			Records: []model.SiteRecord{{
				Homepage: "https://example.org/",
				Results:  []model.PageResult{{PageType: "About", URL: "https://example.org/about", Text: "About"}},
			}},
		}

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf, WithBOM(false)).Write(export); err != nil {
			t.Fatal(err)
		}
		rows, _ := csv.NewReader(&buf).ReadAll()
		if len(rows) != 2 || len(rows[1]) != 5 || rows[1][3] != "" || rows[1][4] != "" {
			t.Errorf("unexpected rows: %v", rows)
		}
	})
}

// TestJSONWriter tests the JSON export.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("keeps every field and adds a summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestExport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Version   string   `json:"version"`
			RunID     string   `json:"run_id"`
			PageTypes []string `json:"page_types"`
			Records   []struct {
				Homepage string             `json:"homepage"`
				Results  []model.PageResult `json:"results"`
			} `json:"records"`
			Summary Summary `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}

		if doc.Version != "v1.2.3" || doc.RunID == "" || len(doc.PageTypes) != 2 {
			t.Errorf("unexpected metadata: %+v", doc)
		}
		about := doc.Records[0].Results[0]
		if about.Source != model.SourceSearch || about.Phrase != "about us" || about.Strategy != model.StrategyDirect {
			t.Errorf("unexpected result: %+v", about)
		}
		if doc.Summary.Success != 2 || doc.Summary.Unreachable != 2 || doc.Summary.Fallbacks != 3 {
			t.Errorf("unexpected summary: %+v", doc.Summary)
		}
		if !strings.Contains(buf.String(), `"outcome": "success"`) {
			t.Error("expected enum names and indented output")
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestExport()); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected a single line of JSON")
		}
	})
}

// TestMarkdownWriter tests the Markdown summary.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestExport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"# pagescout Report",
		"## Outcome Summary",
		"```mermaid",
		"### https://example.org/",
		"search (about us)",
		"homepage_fallback",
		"Welcome to Example Org",
		"<details>",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header, records and totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestExport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"PAGESCOUT REPORT",
			"[1] https://example.org/",
			"[2] ftp://bad.example.org/",
			"success via direct, search (about us)",
			"unreachable via none, homepage_fallback",
			"Results: 4  Success: 2",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("previews are truncated by display width", func(t *testing.T) {
		t.Parallel()

		export := &Export{
			PageTypes: []string{"About"},
			Records: []model.SiteRecord{{
				Homepage: "https://example.jp/",
				Results:  []model.PageResult{{PageType: "About", URL: "https://example.jp/about", Text: strings.Repeat("会社概要", 10)}},
			}},
		}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithPreviewWidth(10)).Write(export); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "会社概...") {
			t.Errorf("expected wide characters to count double:\n%s", buf.String())
		}
	})

	t.Run("full text option", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("word ", 40)
		export := &Export{
			PageTypes: []string{"About"},
			Records: []model.SiteRecord{{
				Homepage: "https://example.org/",
				Results:  []model.PageResult{{PageType: "About", URL: "https://example.org/about", Text: long}},
			}},
		}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithFullText(true)).Write(export); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), long) {
			t.Error("expected the full text")
		}
	})
}

// TestNewWriter tests format selection.
func TestNewWriter(t *testing.T) {
	t.Parallel()

	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(format, &buf)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := w.Write(createTestExport()); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if buf.Len() == 0 {
				t.Error("expected output")
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		if _, err := NewWriter("xlsx", &bytes.Buffer{}); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var csvBuf, textBuf bytes.Buffer
	mw := NewMultiWriter(NewCSVWriter(&csvBuf), NewSimpleWriter(&textBuf))

	n, err := mw.Write(createTestExport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != csvBuf.Len()+textBuf.Len() || csvBuf.Len() == 0 || textBuf.Len() == 0 {
		t.Errorf("unexpected byte count %d", n)
	}
}
