package config

import (
	"reflect"
	"strings"

	"stop-importer/core/database"
	"stop-importer/core/logger"
	"stop-importer/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Importer holds configuration for the stop import run.
	Importer ImporterConfig `mapstructure:"importer"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
}

// ImporterConfig holds the tunables of the reconciliation and importance
// passes.
type ImporterConfig struct {
	// File is the path of the stop feed CSV (optionally gzip-compressed).
	File string `mapstructure:"file" default:""`
	// Object is the feed object name when reading from the storage bucket
	// instead of the local filesystem.
	Object string `mapstructure:"object" default:""`
	// DropStates is a comma-separated list of match states whose records are
	// dropped entirely.
	DropStates string `mapstructure:"drop_states" default:"NO_MATCH_AND_SEEMS_UNSERVED,MATCHED_THOUGH_DISTANT"`
	// ImportanceBaseline is the minimum importance assigned to a stop group.
	// Set to 0 to disable the importance pass.
	ImportanceBaseline float64 `mapstructure:"importance_baseline" default:"0.08"`
	// ImportanceServiced is the maximum importance added depending on the
	// number of serviced lines.
	ImportanceServiced float64 `mapstructure:"importance_serviced" default:"0.1"`
}

// DropSet returns the configured drop states as a slice, trimmed of
// whitespace, with empty entries removed.
func (c ImporterConfig) DropSet() []string {
	var states []string
	for _, s := range strings.Split(c.DropStates, ",") {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, s)
		}
	}
	return states
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	// We construct the path to .env
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. DATABASE_HOST -> database.host)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
