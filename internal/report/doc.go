// Package report writes run results in the supported export formats:
//   - CSVWriter: the spreadsheet export, one row per homepage
//   - JSONWriter: every field of every result, for tool integration
//   - MarkdownWriter: a GitHub Flavored Markdown summary
//   - SimpleWriter: a plain-text summary for terminal display
//
// Design decision: We separate report writing from the result types
// (which are in the model package) so that adding an output format never
// touches discovery code.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
