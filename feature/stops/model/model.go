package model

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrInvalidRecord marks a feed record that is too broken to process
// (malformed coordinate, missing stop identifier). The run aborts on it;
// silently skipping such a record could corrupt the store.
var ErrInvalidRecord = errors.New("invalid feed record")

// MinSyntheticID is the floor of the reserved id space for synthetic stops.
// OSM node ids are not expected to reach this range for the next ten years.
const MinSyntheticID int64 = 50_000_000_000

// Reserved tag keys on placex extratags.
const (
	TagRefIFOPT  = "ref:IFOPT"
	TagWikipedia = "wikipedia"
)

// WikipediaPrefix marks wikipedia cross-reference titles owned by the
// importer. Foreign wikipedia tags (real articles) never carry it.
const WikipediaPrefix = "de:IFOPT_"

// ObjectKind is the OSM object type as stored in Nominatim's osm_type column.
type ObjectKind string

const (
	KindNode     ObjectKind = "N"
	KindWay      ObjectKind = "W"
	KindRelation ObjectKind = "R"
)

// NativeObjectKey addresses a pre-existing OSM object in the database.
type NativeObjectKey struct {
	Kind ObjectKind
	ID   int64
}

// ParseNativeKey parses an osm_id feed field of the form "<nwr><digits>",
// e.g. "n123456". It returns false for anything else; the caller treats a
// malformed key the same as an absent one.
func ParseNativeKey(s string) (NativeObjectKey, bool) {
	if len(s) < 2 {
		return NativeObjectKey{}, false
	}

	var kind ObjectKind
	switch s[0] {
	case 'n', 'N':
		kind = KindNode
	case 'w', 'W':
		kind = KindWay
	case 'r', 'R':
		kind = KindRelation
	default:
		return NativeObjectKey{}, false
	}

	id, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil || id <= 0 {
		return NativeObjectKey{}, false
	}

	return NativeObjectKey{Kind: kind, ID: id}, true
}

// IncomingRecord is one normalized row of the external stop feed.
// County, City and District are optional address components; OSMID,
// MatchState, Lines and Mode are optional as well. GlobalID is the IFOPT
// identifier and must never be empty.
type IncomingRecord struct {
	County   string
	City     string
	District string

	Name    string
	AltName string

	GlobalID string
	Location orb.Point

	OSMID      string
	MatchState string

	Lines []string
	Mode  string
}

// Names builds the name map for the record. The alternate name is only
// included when it actually differs from the primary name; storing an
// identical alt name would be meaningless duplication.
func (r *IncomingRecord) Names() map[string]string {
	names := map[string]string{"name": r.Name}
	if r.AltName != "" && r.AltName != r.Name {
		names["name:alt"] = r.AltName
	}
	return names
}

// Address builds the address map from whichever optional components are
// present. Absent components are omitted, never defaulted to empty strings.
func (r *IncomingRecord) Address() map[string]string {
	addr := make(map[string]string, 3)
	if r.County != "" {
		addr["county"] = r.County
	}
	if r.City != "" {
		addr["city"] = r.City
	}
	if r.District != "" {
		addr["suburb"] = r.District
	}
	return addr
}

// GroupKey returns the first three colon-separated segments of an IFOPT
// identifier, or "" when the identifier has fewer than three segments.
// All stop areas of one station share this prefix.
func GroupKey(globalID string) string {
	parts := strings.Split(globalID, ":")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[:3], ":")
}

// WikipediaTitle derives the wikipedia-style cross-reference title for the
// record, or "" when the identifier is too short to carry one.
func (r *IncomingRecord) WikipediaTitle() string {
	key := GroupKey(r.GlobalID)
	if key == "" {
		return ""
	}
	return WikipediaPrefix + key
}

// SyntheticRecord is a stop object created and owned by the importer,
// stored as an artificial node in the reserved id space.
type SyntheticRecord struct {
	// ID is the synthetic osm_id, always >= MinSyntheticID.
	ID int64

	Names   map[string]string
	Address map[string]string

	// Tags always contains the IFOPT identifier under TagRefIFOPT and
	// optionally a derived cross-reference title under TagWikipedia.
	Tags map[string]string

	Location orb.Point

	// Invalidate marks the record as needing reindexing by downstream
	// consumers (Nominatim's indexed_status).
	Invalidate bool
}

// IFOPT returns the stop identifier stored in the record's tags.
func (s *SyntheticRecord) IFOPT() string {
	return s.Tags[TagRefIFOPT]
}
