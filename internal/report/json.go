package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs exports in JSON format.
// This format is designed for tool integration and keeps every field of
// every result (source, phrase, outcome, strategy).
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the pagescout version recorded in the output.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written by JSONWriter.
//
// Design decision: We wrap the export rather than adding output fields to
// Export so that version and summary stay out of the database round trip.
type JSONReport struct {
	// Version is the pagescout version that generated this report.
	Version string `json:"version,omitempty"`

	*Export

	// Summary is the outcome count for quick access.
	Summary Summary `json:"summary"`
}

// Write outputs the export in JSON format.
func (w *JSONWriter) Write(export *Export) (int, error) {
	doc := JSONReport{
		Version: w.version,
		Export:  export,
		Summary: Summarize(export),
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
