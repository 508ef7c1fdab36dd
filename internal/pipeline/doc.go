// Package pipeline runs page discovery across a batch of homepages.
//
// The Orchestrator fans homepages out with errgroup.SetLimit and, for each
// homepage, runs the configured page types under the same limit. Each homepage
// yields exactly one model.SiteRecord; records are returned in input order
// no matter which site finishes first.
//
// Design decision: Failures never cross the orchestrator boundary because:
//  1. Search and fetch errors are already absorbed into empty results
//  2. One broken site must not cancel the rest of the batch
//  3. A partial export is more useful than none
package pipeline
