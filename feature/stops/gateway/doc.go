// Package gateway is the storage boundary of the importer.
//
// The Gateway interface exposes exactly the CRUD primitives the
// reconciliation engine and the importance aggregator need: native object
// lookup and tagging, the synthetic stop index with insert/update/delete,
// and the importance table. It owns no business logic; all classification
// and idempotence decisions live in the reconcile and importance packages.
//
// # Nominatim
//
// The production implementation targets a Nominatim placex schema on
// PostgreSQL. Synthetic stops are artificial nodes (osm_type 'N') of class
// public_transport/type stop whose osm_id lives in the reserved space above
// model.MinSyntheticID. Name, address and extratags are hstore columns;
// values are assembled in SQL from flattened key/value arrays and read back
// through hstore_to_json, so the implementation works with any
// database/sql-compatible driver.
//
// The importance score lands in wikimedia_importance when the installation
// has it, falling back to the legacy wikipedia_article table.
package gateway
