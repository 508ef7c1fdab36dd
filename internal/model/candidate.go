package model

// RejectReason explains why a PageCandidate is not eligible for fetching.
type RejectReason string

// Candidate rejection reasons.
const (
	// RejectNone marks an eligible candidate.
	RejectNone RejectReason = ""

	// RejectForeignDomain marks a hit on another site.
	RejectForeignDomain RejectReason = "foreign_domain"

	// RejectHomepage marks a hit that is the homepage itself.
	RejectHomepage RejectReason = "homepage"

	// RejectMalformed marks a hit that is not an absolute http(s) URL.
	RejectMalformed RejectReason = "malformed_url"

	// RejectRobots marks a hit disallowed by the site's robots.txt.
	RejectRobots RejectReason = "robots_disallowed"
)

// PageCandidate is a search hit under evaluation.
// It is only used to decide eligibility before any fetch happens.
type PageCandidate struct {
	// URL is the absolute URL of the hit.
	URL string

	// Domain is the normalized domain owning URL.
	Domain string

	// SameDomain is true when Domain matches the homepage's domain under
	// the matcher used to build the candidate.
	SameDomain bool

	// IsHomepage is true when URL designates the homepage itself.
	IsHomepage bool

	// Malformed is true when the hit could not be parsed as an absolute
	// http(s) URL.
	Malformed bool
}

// NewPageCandidate classifies a search hit against a homepage.
// It never fails: a malformed hit yields a candidate that is not eligible.
func NewPageCandidate(raw string, home Homepage, matcher DomainMatcher) PageCandidate {
	c := PageCandidate{URL: raw}

	u, err := parseAbsolute(raw)
	if err != nil {
		c.Malformed = true
		return c
	}

	c.Domain = NormalizeHost(u.Hostname())
	c.SameDomain = matcher.Same(u.Hostname(), home.Host)
	c.IsHomepage = SameURL(raw, home.URL)
	return c
}

// Eligible reports whether the candidate may be fetched.
func (c PageCandidate) Eligible() bool {
	return c.Reason() == RejectNone
}

// Reason returns why the candidate is rejected, or RejectNone.
func (c PageCandidate) Reason() RejectReason {
	switch {
	case c.Malformed:
		return RejectMalformed
	case !c.SameDomain:
		return RejectForeignDomain
	case c.IsHomepage:
		return RejectHomepage
	default:
		return RejectNone
	}
}
