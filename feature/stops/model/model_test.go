package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNativeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  NativeObjectKey
		ok    bool
	}{
		{"node", "n123456", NativeObjectKey{KindNode, 123456}, true},
		{"way", "w42", NativeObjectKey{KindWay, 42}, true},
		{"relation", "r7", NativeObjectKey{KindRelation, 7}, true},
		{"uppercase", "N99", NativeObjectKey{KindNode, 99}, true},
		{"empty", "", NativeObjectKey{}, false},
		{"kind only", "n", NativeObjectKey{}, false},
		{"unknown kind", "x123", NativeObjectKey{}, false},
		{"non numeric id", "n12ab", NativeObjectKey{}, false},
		{"negative id", "n-5", NativeObjectKey{}, false},
		{"bare number", "123456", NativeObjectKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := ParseNativeKey(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, key)
			}
		})
	}
}

func TestIncomingRecord_Names(t *testing.T) {
	t.Run("alt name differs", func(t *testing.T) {
		rec := IncomingRecord{Name: "Hbf", AltName: "Hauptbahnhof"}
		assert.Equal(t, map[string]string{"name": "Hbf", "name:alt": "Hauptbahnhof"}, rec.Names())
	})

	t.Run("identical alt name dropped", func(t *testing.T) {
		rec := IncomingRecord{Name: "Hbf", AltName: "Hbf"}
		assert.Equal(t, map[string]string{"name": "Hbf"}, rec.Names())
	})

	t.Run("empty alt name dropped", func(t *testing.T) {
		rec := IncomingRecord{Name: "Hbf"}
		assert.Equal(t, map[string]string{"name": "Hbf"}, rec.Names())
	})
}

func TestIncomingRecord_Address(t *testing.T) {
	t.Run("all components", func(t *testing.T) {
		rec := IncomingRecord{County: "Main-Kinzig", City: "Hanau", District: "Steinheim"}
		assert.Equal(t, map[string]string{
			"county": "Main-Kinzig",
			"city":   "Hanau",
			"suburb": "Steinheim",
		}, rec.Address())
	})

	t.Run("absent components omitted", func(t *testing.T) {
		rec := IncomingRecord{City: "Hanau"}
		addr := rec.Address()
		assert.Equal(t, map[string]string{"city": "Hanau"}, addr)
		assert.NotContains(t, addr, "county")
	})
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "de:06435:4299", GroupKey("de:06435:4299:0:1"))
	assert.Equal(t, "de:06435:4299", GroupKey("de:06435:4299"))
	assert.Equal(t, "", GroupKey("de:06435"))
	assert.Equal(t, "", GroupKey(""))
}

func TestIncomingRecord_WikipediaTitle(t *testing.T) {
	rec := IncomingRecord{GlobalID: "de:06435:4299:0:1"}
	assert.Equal(t, "de:IFOPT_de:06435:4299", rec.WikipediaTitle())

	short := IncomingRecord{GlobalID: "de:06435"}
	assert.Equal(t, "", short.WikipediaTitle())
}
