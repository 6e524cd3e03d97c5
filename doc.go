// Package shobo answers aggregate questions about users' shopping-basket
// histories: how many of each product were added, removed or purchased,
// optionally narrowed by price range, product name and user.
//
// # Data model
//
// Every user owns a history of operations. An operation either adds a
// product to the basket (and may later be flagged as purchased) or removes
// a previously added, unpurchased product, naming the addition it reverses.
// The full set of users is loaded once from a JSON snapshot and is read-only
// afterwards.
//
// # Usage
//
// Open an Engine over a snapshot and query it:
//
//	e, err := shobo.Open("data/users.json")
//	if err != nil { ... }
//
//	q := e.Query()
//	counts, err := q.Query(shobo.Filter{Purchased: true})
//	counts, err = q.QueryUser(id, shobo.Filter{Added: true, PriceAbove: &min})
//
// # Query semantics
//
// A [Filter] selects operations on two axes. Added picks addition-kind
// operations when true and removals when false; Purchased picks purchased
// additions. Requesting Purchased implies Added, so the combination
// "purchased removals" always yields nothing. Price bounds are inclusive and
// product names match exactly. Results map product name to count; an empty
// map is a valid answer.
//
// # Persistence and reports
//
// [Engine.Save] writes the snapshot to a path other than the one it was
// loaded from, [Engine.Export] writes it to a SQLite archive, and
// [Engine.RunReport] runs Risor report scripts against the loaded users.
// See the internal/runtime package for the globals exposed to scripts.
package shobo
