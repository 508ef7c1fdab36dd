package report

import (
	"bytes"
	"encoding/csv"
	"io"
)

// utf8BOM makes spreadsheet applications detect UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter outputs the spreadsheet export: a header row
// (Homepage, then <PageType>_Page and <PageType>_Content per page type)
// and one row per homepage in input order.
//
// Design decision: We use encoding/csv because:
//  1. Quoting of commas, quotes and newlines in page text must follow RFC 4180
//  2. No CSV library is needed for a single fixed layout
type CSVWriter struct {
	baseWriter

	// bom prefixes the output with a UTF-8 byte order mark.
	bom bool
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithBOM controls the UTF-8 byte order mark. It is on by default.
func WithBOM(bom bool) CSVWriterOption {
	return func(w *CSVWriter) {
		w.bom = bom
	}
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{
		baseWriter: newBaseWriter(output),
		bom:        true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Header returns the CSV header for the given page types.
func Header(pageTypes []string) []string {
	header := make([]string, 0, 1+2*len(pageTypes))
	header = append(header, "Homepage")
	for _, name := range pageTypes {
		header = append(header, name+"_Page", name+"_Content")
	}
	return header
}

// Write outputs the export as CSV.
// A record without a result for a page type gets empty cells.
func (w *CSVWriter) Write(export *Export) (int, error) {
	var buf bytes.Buffer
	if w.bom {
		buf.Write(utf8BOM)
	}

	cw := csv.NewWriter(&buf)
	if err := cw.Write(Header(export.PageTypes)); err != nil {
		return 0, err
	}

	for _, rec := range export.Records {
		row := make([]string, 0, 1+2*len(export.PageTypes))
		row = append(row, rec.Homepage)
		for _, name := range export.PageTypes {
			r, _ := rec.Result(name)
			row = append(row, r.URL, r.Text)
		}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
