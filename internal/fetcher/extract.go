package fetcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisibleSelector matches elements whose text is never shown to a reader.
const invisibleSelector = "script, style, noscript, template, svg"

// decodeBody converts body to UTF-8 using the encoding declared in the
// Content-Type header, a BOM or a <meta charset> tag, in that order of
// precedence, falling back to content sniffing.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return decoded, nil
}

// ExtractText returns the visible text of an HTML document.
// Script and style content is dropped, text nodes are joined with single
// spaces, and the result is NFC-normalized.
func ExtractText(body []byte, contentType string) (string, error) {
	decoded, err := decodeBody(body, contentType)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find(invisibleSelector).Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(&sb, n)
	}

	return NormalizeText(sb.String()), nil
}

// collectText appends every text node under n, separated by spaces.
func collectText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
}

// NormalizeText collapses runs of whitespace to single spaces, trims the
// result and applies Unicode NFC normalization.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
