package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/pagescout/internal/model"
)

// previewWidth is the display width of content previews in tables.
const previewWidth = 60

// MarkdownWriter outputs exports in Markdown format.
// This format is designed for sharing a run summary in issues or wikis.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, details blocks and mermaid charts
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the export in Markdown format.
func (w *MarkdownWriter) Write(export *Export) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(export)

	w.writeHeader(md, export, summary)
	w.writeSummary(md, summary)
	w.writeRecords(md, export)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, export *Export, summary Summary) {
	md.H1("pagescout Report")
	md.PlainText("")

	runID := export.RunID
	if runID == "" {
		runID = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + runID + "`"},
			{"Generated", export.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Homepages", strconv.Itoa(summary.Homepages)},
			{"Page Types", strings.Join(export.PageTypes, ", ")},
		},
	})
	md.PlainText("")
}

// writeSummary writes the outcome table, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary Summary) {
	md.H2("Outcome Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Success", strconv.Itoa(summary.Success)},
			{"🚧 Empty or blocked", strconv.Itoa(summary.EmptyOrBlocked)},
			{"❌ Unreachable", strconv.Itoa(summary.Unreachable)},
			{"↩️ Homepage fallback", strconv.Itoa(summary.Fallbacks)},
			{"🌐 Rendered by browser", strconv.Itoa(summary.Browser)},
			{"**Total**", "**" + strconv.Itoa(summary.Results) + "**"},
		},
	})
	md.PlainText("")

	if summary.Results > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if summary.Success > 0 {
		chart.LabelAndIntValue("Success", uint64(summary.Success))
	}
	if summary.EmptyOrBlocked > 0 {
		chart.LabelAndIntValue("Empty or blocked", uint64(summary.EmptyOrBlocked))
	}
	if summary.Unreachable > 0 {
		chart.LabelAndIntValue("Unreachable", uint64(summary.Unreachable))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how usable the run is.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary Summary) {
	switch {
	case summary.Results == 0:
		md.Note("No homepages were processed.")
	case summary.Success == 0:
		md.Cautionf("No page produced text. Check the search credentials and network access.")
	case summary.Fallbacks == summary.Results:
		md.Warningf("Every page type fell back to the homepage. %d of %d results have text.",
			summary.Success, summary.Results)
	case summary.Success < summary.Results:
		md.Importantf("%d of %d results have no text.", summary.Results-summary.Success, summary.Results)
	default:
		md.Tip("Every page type produced text.")
	}
	md.PlainText("")
}

// writeRecords writes one section per homepage.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, export *Export) {
	md.H2("Homepages")
	md.PlainText("")

	if len(export.Records) == 0 {
		md.PlainText("No homepages.")
		md.PlainText("")
		return
	}

	for _, rec := range export.Records {
		md.H3(escapeCell(rec.Homepage))
		md.PlainText("")

		rows := make([][]string, 0, len(export.PageTypes))
		for _, name := range export.PageTypes {
			r, ok := rec.Result(name)
			if !ok {
				rows = append(rows, []string{name, "-", "-", "-", "-", "-"})
				continue
			}
			rows = append(rows, []string{
				name,
				escapeCell(r.URL),
				sourceText(r),
				r.Outcome.String(),
				r.Strategy.String(),
				escapeCell(preview(r.Text, previewWidth)),
			})
		}

		md.Table(markdown.TableSet{
			Header: []string{"Page Type", "URL", "Source", "Outcome", "Strategy", "Preview"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, r := range rec.Results {
			if r.Text != "" {
				md.Details(r.PageType, r.Text)
			}
		}
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagescout](https://github.com/nao1215/pagescout)*")
}

// sourceText describes where a result's URL came from.
func sourceText(r model.PageResult) string {
	if r.Source == model.SourceSearch && r.Phrase != "" {
		return "search (" + r.Phrase + ")"
	}
	return r.Source.String()
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
