package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// width is the display width of content previews.
	width int

	// showText prints the full text below each result.
	showText bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithPreviewWidth sets the display width of content previews.
func WithPreviewWidth(width int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if width > 3 {
			w.width = width
		}
	}
}

// WithFullText prints the complete text of every result.
func WithFullText(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showText = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		width:      previewWidth,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the export in human-readable format.
func (w *SimpleWriter) Write(export *Export) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, export)
	w.writeRecords(&sb, export)
	w.writeFooter(&sb, Summarize(export))

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, export *Export) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         PAGESCOUT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if export.RunID != "" {
		fmt.Fprintf(sb, "Run:        %s\n", export.RunID)
	}
	fmt.Fprintf(sb, "Generated:  %s\n", export.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Homepages:  %d\n", len(export.Records))
	fmt.Fprintf(sb, "Page Types: %s\n\n", strings.Join(export.PageTypes, ", "))
}

// writeRecords writes one block per homepage. Page type names are padded
// to a common display width so that URLs line up.
func (w *SimpleWriter) writeRecords(sb *strings.Builder, export *Export) {
	nameWidth := 0
	for _, name := range export.PageTypes {
		nameWidth = max(nameWidth, runewidth.StringWidth(name))
	}

	for i, rec := range export.Records {
		sb.WriteString(strings.Repeat("-", 70))
		fmt.Fprintf(sb, "\n[%d] %s\n", i+1, rec.Homepage)

		for _, name := range export.PageTypes {
			label := runewidth.FillRight(name, nameWidth)
			r, ok := rec.Result(name)
			if !ok {
				fmt.Fprintf(sb, "  %s  (missing)\n", label)
				continue
			}

			fmt.Fprintf(sb, "  %s  %s\n", label, r.URL)
			indent := strings.Repeat(" ", nameWidth+4)
			fmt.Fprintf(sb, "%s%s via %s, %s\n", indent, r.Outcome, r.Strategy, sourceText(r))
			if w.showText && r.Text != "" {
				fmt.Fprintf(sb, "%s%s\n", indent, r.Text)
			} else {
				fmt.Fprintf(sb, "%s%s\n", indent, preview(r.Text, w.width))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the outcome totals.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, s Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Results: %d  Success: %d  Empty/Blocked: %d  Unreachable: %d  Fallbacks: %d\n",
		s.Results, s.Success, s.EmptyOrBlocked, s.Unreachable, s.Fallbacks)
}
