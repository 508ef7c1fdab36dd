// Package main provides the entry point for the pagescout CLI.
//
// pagescout discovers and extracts the informational subpages (About,
// Programs, ...) of a list of websites and exports one row per website.
//
// Usage:
//
//	pagescout run https://example.org/
//	pagescout run --list homepages.txt -o results.csv
//
// See --help for all available options.
package main

// main is the entry point for pagescout.
func main() {
	Execute()
}
