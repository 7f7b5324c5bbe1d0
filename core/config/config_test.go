package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "nominatim", cfg.Database.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.08, cfg.Importer.ImportanceBaseline)
	assert.Equal(t, 0.1, cfg.Importer.ImportanceServiced)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.example.com")
	t.Setenv("IMPORTER_IMPORTANCE_BASELINE", "0.2")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 0.2, cfg.Importer.ImportanceBaseline)
}

func TestImporterConfig_DropSet(t *testing.T) {
	tests := []struct {
		name   string
		states string
		want   []string
	}{
		{
			name:   "defaults",
			states: "NO_MATCH_AND_SEEMS_UNSERVED,MATCHED_THOUGH_DISTANT",
			want:   []string{"NO_MATCH_AND_SEEMS_UNSERVED", "MATCHED_THOUGH_DISTANT"},
		},
		{
			name:   "whitespace trimmed",
			states: " A , B ",
			want:   []string{"A", "B"},
		},
		{
			name:   "empty",
			states: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ImporterConfig{DropStates: tt.states}
			assert.Equal(t, tt.want, cfg.DropSet())
		})
	}
}
