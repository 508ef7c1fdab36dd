package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nao1215/pagescout/internal/model"
)

// Export formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Formats lists the supported export formats.
var Formats = []string{FormatCSV, FormatJSON, FormatMarkdown, FormatText}

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown output format")

// Export is the content of one export: the records of a run plus the
// column layout.
//
// Design decision: PageTypes travels with the records because:
//  1. An empty run must still produce the CSV header
//  2. A re-exported run from the database keeps its own page types
type Export struct {
	// RunID identifies the stored run. Empty when the run was not saved.
	RunID string `json:"run_id,omitempty"`

	// GeneratedAt is when the run finished.
	GeneratedAt time.Time `json:"generated_at"`

	// PageTypes are the page type names in column order.
	PageTypes []string `json:"page_types"`

	// Records holds one entry per homepage, in input order.
	Records []model.SiteRecord `json:"records"`
}

// NewExport creates an Export for records produced with pageTypes.
func NewExport(pageTypes []model.PageType, records []model.SiteRecord) *Export {
	names := make([]string, len(pageTypes))
	for i, pt := range pageTypes {
		names[i] = pt.Name
	}
	return &Export{
		GeneratedAt: time.Now(),
		PageTypes:   names,
		Records:     records,
	}
}

// Writer defines the interface for export output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files or stdout with the
// same API.
type Writer interface {
	// Write outputs the export to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(export *Export) (int, error)
}

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatText:
		return NewSimpleWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the export to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(export *Export) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(export)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Summary counts the results of an export.
type Summary struct {
	Homepages      int `json:"homepages"`
	Results        int `json:"results"`
	Success        int `json:"success"`
	EmptyOrBlocked int `json:"empty_or_blocked"`
	Unreachable    int `json:"unreachable"`

	// Fallbacks counts results that fell back to the homepage.
	Fallbacks int `json:"homepage_fallbacks"`

	// Browser counts results produced by the browser tier.
	Browser int `json:"browser"`
}

// Summarize counts outcomes over every result of the export.
func Summarize(export *Export) Summary {
	s := Summary{Homepages: len(export.Records)}
	for _, rec := range export.Records {
		for _, r := range rec.Results {
			s.Results++
			switch r.Outcome {
			case model.OutcomeSuccess:
				s.Success++
			case model.OutcomeEmptyOrBlocked:
				s.EmptyOrBlocked++
			case model.OutcomeUnreachable:
				s.Unreachable++
			}
			if r.Source == model.SourceHomepageFallback {
				s.Fallbacks++
			}
			if r.Strategy == model.StrategyBrowser {
				s.Browser++
			}
		}
	}
	return s
}

// preview shortens text to at most width display columns.
// East Asian wide characters count as two columns.
func preview(text string, width int) string {
	if text == "" {
		return "-"
	}
	return runewidth.Truncate(text, width, "...")
}
