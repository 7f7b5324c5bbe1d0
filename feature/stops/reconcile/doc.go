// Package reconcile implements the reconciliation engine of the importer.
//
// The engine consumes the stop feed once per run and classifies every record
// into one of five outcomes: native match (the referenced OSM object exists
// and gets the identifier tag), synthetic update, synthetic insert, duplicate
// skip, or drop. After the full feed is consumed, a single batch deletion
// retires every synthetic stop whose identifier no longer appears. The
// post-run invariant is exact coverage: the set of synthetic identifiers in
// the store equals the set of non-dropped, non-natively-matched identifiers
// of the feed.
//
// # Idempotence
//
// Every write is guarded: native tagging only bumps the reindex status when
// the stored identifier changed, and synthetic updates compare names,
// address, identifier tag and coordinates (within CoordTolerance) before
// touching the row. Running twice against the same feed performs zero writes
// the second time, which also makes re-running after a partial failure a
// safe repair.
//
// # Id allocation
//
// Synthetic ids come from a reserved space with a fixed floor
// (model.MinSyntheticID), disjoint from native OSM ids. Allocation is a plain
// monotonic counter seeded from the store's current maximum; the engine is
// the only writer and runs are externally serialized.
package reconcile
