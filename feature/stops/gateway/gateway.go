package gateway

import (
	"context"
	"errors"

	"stop-importer/feature/stops/model"
)

// ErrNotFound is returned by lookups when the referenced object does not
// exist in the store.
var ErrNotFound = errors.New("object not found")

// NativeObject is the slice of a pre-existing OSM object the engine cares
// about.
type NativeObject struct {
	Key model.NativeObjectKey
	// HasName reports whether the object carries any name in the store.
	HasName bool
}

// TagResult reports the outcome of tagging a native object.
type TagResult struct {
	// Found is false when the referenced object no longer exists; the engine
	// falls through to the synthetic path in that case.
	Found bool
	// HadName reports whether the object already had a name. When false, the
	// engine backfills the feed name as a side effect.
	HadName bool
}

// Gateway is the narrow storage boundary the reconciliation engine and the
// importance aggregator consume. It owns no business logic, only CRUD
// primitives against the geospatial store.
type Gateway interface {
	// FindNative looks up a native object by key. Returns ErrNotFound when
	// the object does not exist.
	FindNative(ctx context.Context, key model.NativeObjectKey) (*NativeObject, error)

	// TagNative merges the stop identifier tag (and, unless the object
	// already carries a foreign cross-reference, the wikipedia title) into
	// the object's tag map. The object is marked for reindexing when
	// invalidate is set or the stored identifier actually changed.
	TagNative(ctx context.Context, key model.NativeObjectKey, ifopt, wikipedia string, invalidate bool) (TagResult, error)

	// BackfillName sets the object's name map. Only called when the object
	// has no name; native data stays authoritative otherwise.
	BackfillName(ctx context.Context, key model.NativeObjectKey, names map[string]string) error

	// SyntheticIndex returns all synthetic stops currently in the store as a
	// map of IFOPT identifier to synthetic id. Only ids in the reserved
	// space carrying the identifier tag are included.
	SyntheticIndex(ctx context.Context) (map[string]int64, error)

	// GetSynthetic loads a synthetic stop by its id. Returns ErrNotFound
	// when no such record exists.
	GetSynthetic(ctx context.Context, id int64) (*model.SyntheticRecord, error)

	// InsertSynthetic creates a new synthetic stop.
	InsertSynthetic(ctx context.Context, rec model.SyntheticRecord) error

	// UpdateSynthetic overwrites an existing synthetic stop in place.
	UpdateSynthetic(ctx context.Context, rec model.SyntheticRecord) error

	// DeleteSynthetic removes the synthetic stops with the given ids in one
	// batch.
	DeleteSynthetic(ctx context.Context, ids []int64) error

	// ReadImportance returns the stored importance score for a title; ok is
	// false when no entry exists.
	ReadImportance(ctx context.Context, title string) (score float64, ok bool, err error)

	// UpsertImportance writes the importance score for a title, inserting or
	// updating as needed.
	UpsertImportance(ctx context.Context, title string, score float64) error
}
