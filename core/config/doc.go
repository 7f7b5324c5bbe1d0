// Package config loads and aggregates the application configuration.
//
// Configuration is sourced from environment variables, optionally seeded from
// a .env file via godotenv, and bound through Viper. Defaults are declared as
// struct tags on the partial Config types and registered recursively, so
// every key is known to Viper before AutomaticEnv kicks in.
//
// Keys are nested; the environment variable name is the upper-cased key with
// dots replaced by underscores, e.g. DATABASE_HOST -> database.host,
// IMPORTER_DROP_STATES -> importer.drop_states.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    return err
//	}
//	db, err := database.Connect(cfg.Database)
package config
