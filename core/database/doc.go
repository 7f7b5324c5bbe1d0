// Package database handles the connection to the Nominatim database.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly
// configure PostgreSQL connections based on the application's configuration.
// The importer issues raw SQL against the placex and importance tables through
// the returned handle; no GORM models are mapped.
//
// # Connect
//
// The Connect function establishes a connection to the database, configures
// the connection pool, and verifies reachability with a ping before returning.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
