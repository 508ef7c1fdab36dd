// Package model defines the data structures shared by the pagescout packages.
//
// This package contains the following main types:
//   - Homepage: a site root, identified by its normalized domain
//   - PageType: a named, ordered set of candidate search phrases
//   - PageCandidate: a search hit under evaluation before it is fetched
//   - FetchOutcome: the terminal result of one escalating fetch
//   - PageResult: the resolved URL and text for a (homepage, page type) pair
//   - SiteRecord: one exported row, one PageResult per configured page type
//
// Domain identity: hosts are lower-cased, the port and a trailing dot are
// dropped and a single leading "www." label is removed. The scheme never
// takes part in the comparison. DomainMatcher can widen the comparison to the
// registrable domain (eTLD+1) when subdomains should count as the same site.
//
// The models are serializable to JSON for report output and database storage.
package model
