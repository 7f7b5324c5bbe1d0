// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"strings"

	"stop-importer/feature/stops/gateway"
	"stop-importer/feature/stops/model"
)

// NativeObject is the in-memory shape of a native OSM object.
type NativeObject struct {
	Names      map[string]string
	Tags       map[string]string
	Invalidate bool
}

// Fake is an in-memory Gateway. It records every write so tests can assert
// on mutation counts and ordering.
type Fake struct {
	Native     map[model.NativeObjectKey]*NativeObject
	Synthetic  map[int64]*model.SyntheticRecord
	Importance map[string]float64

	// Err, when set, is returned by every call. Simulates an unavailable
	// store.
	Err error

	// Write log.
	Inserts          []int64
	Updates          []int64
	Deletes          [][]int64
	ImportanceWrites []string
	Backfills        []model.NativeObjectKey
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Native:     make(map[model.NativeObjectKey]*NativeObject),
		Synthetic:  make(map[int64]*model.SyntheticRecord),
		Importance: make(map[string]float64),
	}
}

// AddNative registers a native object. names may be nil for a nameless
// object.
func (f *Fake) AddNative(key model.NativeObjectKey, names map[string]string) *NativeObject {
	obj := &NativeObject{Names: names, Tags: make(map[string]string)}
	f.Native[key] = obj
	return obj
}

// AddSynthetic registers an existing synthetic stop.
func (f *Fake) AddSynthetic(rec model.SyntheticRecord) {
	f.Synthetic[rec.ID] = &rec
}

// WriteCount returns the total number of mutations recorded.
func (f *Fake) WriteCount() int {
	n := len(f.Inserts) + len(f.Updates) + len(f.ImportanceWrites) + len(f.Backfills)
	for _, batch := range f.Deletes {
		n += len(batch)
	}
	return n
}

func (f *Fake) FindNative(ctx context.Context, key model.NativeObjectKey) (*gateway.NativeObject, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	obj, ok := f.Native[key]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &gateway.NativeObject{Key: key, HasName: len(obj.Names) > 0}, nil
}

func (f *Fake) TagNative(ctx context.Context, key model.NativeObjectKey, ifopt, wikipedia string, invalidate bool) (gateway.TagResult, error) {
	if f.Err != nil {
		return gateway.TagResult{}, f.Err
	}
	obj, ok := f.Native[key]
	if !ok {
		return gateway.TagResult{}, nil
	}

	if invalidate || obj.Tags[model.TagRefIFOPT] != ifopt {
		obj.Invalidate = true
	}
	obj.Tags[model.TagRefIFOPT] = ifopt

	existing, has := obj.Tags[model.TagWikipedia]
	foreign := has && !strings.HasPrefix(existing, model.WikipediaPrefix)
	if wikipedia != "" && !foreign {
		obj.Tags[model.TagWikipedia] = wikipedia
	}

	return gateway.TagResult{Found: true, HadName: len(obj.Names) > 0}, nil
}

func (f *Fake) BackfillName(ctx context.Context, key model.NativeObjectKey, names map[string]string) error {
	if f.Err != nil {
		return f.Err
	}
	obj, ok := f.Native[key]
	if !ok {
		return gateway.ErrNotFound
	}
	obj.Names = names
	obj.Invalidate = true
	f.Backfills = append(f.Backfills, key)
	return nil
}

func (f *Fake) SyntheticIndex(ctx context.Context) (map[string]int64, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	index := make(map[string]int64, len(f.Synthetic))
	for id, rec := range f.Synthetic {
		if ifopt := rec.IFOPT(); ifopt != "" {
			index[ifopt] = id
		}
	}
	return index, nil
}

func (f *Fake) GetSynthetic(ctx context.Context, id int64) (*model.SyntheticRecord, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	rec, ok := f.Synthetic[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *Fake) InsertSynthetic(ctx context.Context, rec model.SyntheticRecord) error {
	if f.Err != nil {
		return f.Err
	}
	f.Synthetic[rec.ID] = &rec
	f.Inserts = append(f.Inserts, rec.ID)
	return nil
}

func (f *Fake) UpdateSynthetic(ctx context.Context, rec model.SyntheticRecord) error {
	if f.Err != nil {
		return f.Err
	}
	f.Synthetic[rec.ID] = &rec
	f.Updates = append(f.Updates, rec.ID)
	return nil
}

func (f *Fake) DeleteSynthetic(ctx context.Context, ids []int64) error {
	if f.Err != nil {
		return f.Err
	}
	for _, id := range ids {
		delete(f.Synthetic, id)
	}
	f.Deletes = append(f.Deletes, ids)
	return nil
}

func (f *Fake) ReadImportance(ctx context.Context, title string) (float64, bool, error) {
	if f.Err != nil {
		return 0, false, f.Err
	}
	score, ok := f.Importance[title]
	return score, ok, nil
}

func (f *Fake) UpsertImportance(ctx context.Context, title string, score float64) error {
	if f.Err != nil {
		return f.Err
	}
	f.Importance[title] = score
	f.ImportanceWrites = append(f.ImportanceWrites, title)
	return nil
}
