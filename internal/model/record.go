package model

import (
	"fmt"
	"strings"
)

// Source tells where a PageResult's URL came from.
type Source int

const (
	// SourceSearch means the URL is a validated search hit.
	SourceSearch Source = iota

	// SourceHomepageFallback means no phrase produced a valid hit and the
	// homepage itself was used.
	SourceHomepageFallback
)

var sourceNames = map[Source]string{
	SourceSearch:           "search",
	SourceHomepageFallback: "homepage_fallback",
}

// String returns the snake_case name of the source.
func (s Source) String() string {
	return enumName(sourceNames, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	return enumParse(sourceNames, string(text), s)
}

// PageResult is the discovery output for one (homepage, page type) pair.
type PageResult struct {
	// PageType is the name of the page type.
	PageType string `json:"page_type"`

	// URL is the resolved page: a same-domain search hit or the homepage.
	URL string `json:"url"`

	// Text is the extracted text. It is empty only when even the homepage
	// fetch failed.
	Text string `json:"text"`

	// Source tells whether URL came from search or the homepage fallback.
	Source Source `json:"source"`

	// Phrase is the candidate phrase whose search produced URL.
	// Empty for the homepage fallback.
	Phrase string `json:"phrase,omitempty"`

	// Outcome is the kind of the fetch that produced Text.
	Outcome OutcomeKind `json:"outcome"`

	// Strategy is the fetch tier that produced Text.
	Strategy Strategy `json:"strategy"`
}

// SiteRecord is one exported row: a homepage and exactly one PageResult
// per configured page type, in configuration order.
type SiteRecord struct {
	// Homepage is the homepage URL as given.
	Homepage string `json:"homepage"`

	// Results holds one entry per page type.
	Results []PageResult `json:"results"`
}

// NewSiteRecord assembles a record, ordering results by pageTypes.
// It fails when a page type has no result, has several, or when a result
// names a page type that is not configured.
func NewSiteRecord(homepage string, pageTypes []PageType, results []PageResult) (SiteRecord, error) {
	byName := make(map[string]PageResult, len(results))
	for _, r := range results {
		key := strings.ToLower(r.PageType)
		if _, dup := byName[key]; dup {
			return SiteRecord{}, fmt.Errorf("%w: %s", ErrDuplicatePageResult, r.PageType)
		}
		byName[key] = r
	}

	ordered := make([]PageResult, 0, len(pageTypes))
	for _, pt := range pageTypes {
		key := strings.ToLower(pt.Name)
		r, ok := byName[key]
		if !ok {
			return SiteRecord{}, fmt.Errorf("%w: %s", ErrMissingPageResult, pt.Name)
		}
		ordered = append(ordered, r)
		delete(byName, key)
	}
	for _, r := range byName {
		return SiteRecord{}, fmt.Errorf("%w: %s", ErrUnknownPageType, r.PageType)
	}

	return SiteRecord{Homepage: homepage, Results: ordered}, nil
}

// Result returns the result for the named page type.
func (r SiteRecord) Result(pageType string) (PageResult, bool) {
	for _, res := range r.Results {
		if strings.EqualFold(res.PageType, pageType) {
			return res, true
		}
	}
	return PageResult{}, false
}

// PageTypeNames returns the page type names in record order.
func (r SiteRecord) PageTypeNames() []string {
	names := make([]string, len(r.Results))
	for i, res := range r.Results {
		names[i] = res.PageType
	}
	return names
}
