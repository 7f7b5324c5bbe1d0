// Package feed reads the external stop feed.
//
// The feed is CSV with a header row; each data row describes one
// public-transport stop with its IFOPT identifier, names, optional address
// components, WGS84 coordinates, an optional OSM object reference, the list
// of serviced lines and the transport mode.
//
// A Source abstracts where the file lives: FileSource reads from the local
// filesystem, ObjectSource from the storage bucket. Sources are restartable;
// the import run opens the feed once for the importance pass and once for the
// reconciliation pass. Files ending in .gz are decompressed transparently.
//
// The adapter performs no business logic. It parses coordinates because a
// non-numeric coordinate must abort the run before any mutation, but all
// classification happens in the reconcile package.
package feed
