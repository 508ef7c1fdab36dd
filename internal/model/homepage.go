package model

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Homepage is the root URL of one organization site.
// It is immutable after construction; use NewHomepage to build one.
type Homepage struct {
	// URL is the homepage as given by the user, with "https://" prepended
	// when the input had no scheme.
	URL string `json:"url"`

	// Host is the hostname of URL without port.
	Host string `json:"host"`
}

// NewHomepage parses and validates a homepage URL.
// Inputs without a scheme ("example.org") are treated as https.
func NewHomepage(raw string) (Homepage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Homepage{}, ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := parseAbsolute(raw)
	if err != nil {
		return Homepage{}, err
	}

	return Homepage{URL: raw, Host: u.Hostname()}, nil
}

// Domain returns the normalized domain that identifies the site.
func (h Homepage) Domain() string {
	return NormalizeHost(h.Host)
}

// String returns the homepage URL.
func (h Homepage) String() string {
	return h.URL
}

// parseAbsolute parses raw and requires an http(s) scheme and a host.
func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err) //nolint:errorlint // url errors are informational only
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotAbsoluteURL, raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %s", ErrInvalidURL, raw)
	}
	return u, nil
}

// NormalizeHost lower-cases a hostname and strips the port, a trailing dot
// and one leading "www." label.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}

// MatchMode selects how two hosts are compared.
type MatchMode int

const (
	// MatchHost compares normalized hosts. blog.example.org and example.org
	// are different sites.
	MatchHost MatchMode = iota

	// MatchRegistrable compares registrable domains (eTLD+1), so every
	// subdomain of example.org belongs to example.org.
	MatchRegistrable
)

// String returns the configuration name of the mode.
func (m MatchMode) String() string {
	switch m {
	case MatchHost:
		return "host"
	case MatchRegistrable:
		return "registrable"
	default:
		return "unknown"
	}
}

// DomainMatcher implements the same-domain filter.
// The zero value compares normalized hosts.
type DomainMatcher struct {
	// Mode selects host or registrable-domain comparison.
	Mode MatchMode
}

// Key returns the comparison key for host under the matcher's mode.
// IP addresses and hosts without a public suffix fall back to the
// normalized host.
func (m DomainMatcher) Key(host string) string {
	h := NormalizeHost(host)
	if m.Mode != MatchRegistrable || h == "" || net.ParseIP(h) != nil {
		return h
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return etld1
}

// Same reports whether two hosts belong to the same site.
func (m DomainMatcher) Same(a, b string) bool {
	ka := m.Key(a)
	return ka != "" && ka == m.Key(b)
}

// SameURL reports whether two absolute URLs designate the same page.
// Scheme, port, a leading "www.", the fragment and a trailing slash are
// ignored; the query string is significant.
func SameURL(a, b string) bool {
	na, okA := urlKey(a)
	nb, okB := urlKey(b)
	return okA && okB && na == nb
}

// urlKey builds the comparison key used by SameURL.
func urlKey(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	key := NormalizeHost(u.Hostname()) + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key, true
}
