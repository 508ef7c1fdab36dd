// Package discovery finds the subpage of a homepage that best matches a
// page type such as "About" or "Programs".
//
// For each candidate phrase, in order, the Discoverer issues a search
// restricted to the homepage's domain and walks the hits in provider order.
// A hit is fetched only when it is on the same domain and is not the
// homepage itself. The first hit whose fetch succeeds wins. When no phrase
// produces a winner, the homepage is fetched and returned as the fallback
// result, so every discovery yields exactly one PageResult.
package discovery
