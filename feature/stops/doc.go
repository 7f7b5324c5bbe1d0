// Package stops orchestrates one import run of the external stop feed.
//
// A run performs exactly two sequential passes over the feed: first the
// importance pass (feature/stops/importance), which tallies per-group
// service statistics and upserts ranking scores, then the reconciliation
// pass (feature/stops/reconcile), which merges the feed into the store.
// Both passes are idempotent, so an aborted run is repaired by simply
// running again.
//
// Subpackages:
//
//   - model: shared data types and derivation helpers
//   - feed: the CSV stream adapter (local file, gzip, object storage)
//   - gateway: the storage boundary and its Nominatim implementation
//   - reconcile: the reconciliation engine
//   - importance: the importance aggregator
//
// The packages layer strictly: model at the bottom, gateway and feed above
// it, the two passes above those, and this package on top. Nothing here
// knows about CSV mechanics or SQL; those live at the edges.
package stops
