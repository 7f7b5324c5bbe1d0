// Package model defines the data types shared by the stop importer.
//
// It covers the three shapes of data the importer deals with:
//
//  1. IncomingRecord: one normalized row of the external stop feed, carrying
//     the globally unique IFOPT identifier, names, address components,
//     coordinates and an optional OSM object reference.
//
//  2. NativeObjectKey: the typed address of a pre-existing OSM object in the
//     Nominatim database (node, way or relation plus numeric id). The importer
//     never creates these; it only tags them.
//
//  3. SyntheticRecord: a stop object created and exclusively owned by the
//     importer. Synthetic ids are allocated from a reserved space starting at
//     MinSyntheticID, well above any id range OSM will hand out in the
//     foreseeable future, so they can never collide with native objects.
//
// The package also holds the derivation helpers (name map, address map,
// wikipedia cross-reference title, importance group key) so that the engine
// and the aggregator compute them identically.
package model
