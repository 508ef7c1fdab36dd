// Package search provides the domain-scoped search boundary of pagescout.
//
// A Provider turns a query such as "site:example.org about us" into an
// ordered list of result URLs. Providers never return errors: a failed
// query is logged and treated as "no hits", because the caller always has a
// cheaper alternative (the next candidate phrase). Retries belong to the
// fetch layer, not here.
//
// GoogleClient implements Provider on top of the Custom Search JSON API.
// Concurrent callers share one token-bucket Limiter and one Quota so that a
// batch never exceeds the external query budget.
package search
