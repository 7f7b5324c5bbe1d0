package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"stop-importer/feature/stops/gateway"
	"stop-importer/feature/stops/model"

	"go.uber.org/zap"
)

// CoordTolerance is the per-axis tolerance in degrees below which a
// coordinate change is treated as unchanged. 1e-6 degrees is below typical
// GPS and geocoding noise but above float round-trip error.
const CoordTolerance = 1e-6

// RecordStream is the lazy feed consumed by the engine. Next returns io.EOF
// when the feed is exhausted.
type RecordStream interface {
	Next() (*model.IncomingRecord, error)
}

// Options control a reconciliation run.
type Options struct {
	// Invalidate marks every touched stop as needing reindexing, regardless
	// of whether its content changed.
	Invalidate bool
	// DryRun classifies every record but applies no mutation.
	DryRun bool
}

// Summary holds the counters of one reconciliation run.
type Summary struct {
	// Matched counts records tagged onto an existing native object.
	Matched int
	// Updated counts synthetic stops rewritten because their content changed.
	Updated int
	// Inserted counts newly created synthetic stops.
	Inserted int
	// Deleted counts synthetic stops retired because their identifier left
	// the feed.
	Deleted int
	// Dropped counts records skipped by the match-state drop filter.
	Dropped int
	// Duplicates counts repeated identifiers ignored after their first
	// occurrence.
	Duplicates int
}

// Engine reconciles the stop feed against the store. For every record it
// decides between tagging a native object, updating or inserting a synthetic
// stop, skipping a duplicate, or dropping the record, and finally retires
// all synthetic stops whose identifier no longer appears in the feed.
type Engine struct {
	gw   gateway.Gateway
	log  *zap.Logger
	drop map[string]struct{}
}

// NewEngine creates an engine. Records whose match state is in dropStates
// are skipped entirely.
func NewEngine(gw gateway.Gateway, log *zap.Logger, dropStates []string) *Engine {
	drop := make(map[string]struct{}, len(dropStates))
	for _, s := range dropStates {
		drop[s] = struct{}{}
	}
	return &Engine{gw: gw, log: log, drop: drop}
}

// Run consumes the feed once and applies the minimal set of mutations, in
// feed order, with the deletion batch strictly last. Re-running against an
// unchanged feed performs zero writes.
func (e *Engine) Run(ctx context.Context, stream RecordStream, opts Options) (Summary, error) {
	var sum Summary

	index, err := e.gw.SyntheticIndex(ctx)
	if err != nil {
		return sum, err
	}

	// Next free id in the reserved space: one above the highest synthetic id
	// seen, or the floor when none exist yet.
	nextID := model.MinSyntheticID
	for _, id := range index {
		if id+1 > nextID {
			nextID = id + 1
		}
	}

	seen := make(map[string]struct{})

	for {
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, err
		}

		if _, dropped := e.drop[rec.MatchState]; dropped {
			sum.Dropped++
			continue
		}

		if rec.GlobalID == "" {
			return sum, fmt.Errorf("record %q has no stop identifier: %w", rec.Name, model.ErrInvalidRecord)
		}

		matched, err := e.tryNativeMatch(ctx, rec, opts)
		if err != nil {
			return sum, err
		}
		if matched {
			// A natively matched identifier owns no synthetic stop; if one
			// exists from an earlier run, the deletion pass retires it.
			sum.Matched++
			continue
		}

		if _, dup := seen[rec.GlobalID]; dup {
			sum.Duplicates++
			continue
		}

		if id, exists := index[rec.GlobalID]; exists {
			updated, err := e.updateIfChanged(ctx, id, rec, opts)
			if err != nil {
				return sum, err
			}
			if updated {
				sum.Updated++
			}
		} else {
			if err := e.insert(ctx, nextID, rec, opts); err != nil {
				return sum, err
			}
			nextID++
			sum.Inserted++
		}

		seen[rec.GlobalID] = struct{}{}
	}

	// Deletion pass: everything in the store that the feed no longer names.
	stale := make([]int64, 0)
	for ifopt, id := range index {
		if _, ok := seen[ifopt]; !ok {
			stale = append(stale, id)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })

	if len(stale) > 0 && !opts.DryRun {
		if err := e.gw.DeleteSynthetic(ctx, stale); err != nil {
			return sum, err
		}
	}
	sum.Deleted = len(stale)

	return sum, nil
}

// tryNativeMatch attempts to tag the record's native object. It reports
// false when the record carries no usable key or the object is gone, in
// which case the caller falls through to the synthetic path.
func (e *Engine) tryNativeMatch(ctx context.Context, rec *model.IncomingRecord, opts Options) (bool, error) {
	key, ok := model.ParseNativeKey(rec.OSMID)
	if !ok {
		return false, nil
	}

	if opts.DryRun {
		// Probe without writing; classification must still be accurate.
		_, err := e.gw.FindNative(ctx, key)
		if errors.Is(err, gateway.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	res, err := e.gw.TagNative(ctx, key, rec.GlobalID, rec.WikipediaTitle(), opts.Invalidate)
	if err != nil {
		return false, err
	}
	if !res.Found {
		return false, nil
	}

	if !res.HadName {
		// Native data is authoritative for the name only when absent.
		if err := e.gw.BackfillName(ctx, key, rec.Names()); err != nil {
			return false, err
		}
		e.log.Debug("backfilled name of native object",
			zap.String("osm_id", rec.OSMID), zap.String("ifopt", rec.GlobalID))
	}

	return true, nil
}

// insert creates a new synthetic stop for a first-seen identifier.
func (e *Engine) insert(ctx context.Context, id int64, rec *model.IncomingRecord, opts Options) error {
	if opts.DryRun {
		return nil
	}

	if err := e.gw.InsertSynthetic(ctx, buildSynthetic(id, rec)); err != nil {
		return err
	}
	e.log.Debug("inserted synthetic stop",
		zap.Int64("id", id), zap.String("ifopt", rec.GlobalID))
	return nil
}

// updateIfChanged compares the stored synthetic stop against the record and
// rewrites it only when something actually differs (or invalidation is
// forced). It reports whether a mutation was emitted.
func (e *Engine) updateIfChanged(ctx context.Context, id int64, rec *model.IncomingRecord, opts Options) (bool, error) {
	stored, err := e.gw.GetSynthetic(ctx, id)
	if err != nil {
		return false, err
	}

	fresh := buildSynthetic(id, rec)

	changed := opts.Invalidate ||
		!containsAll(stored.Names, fresh.Names) ||
		!mapsEqual(stored.Address, fresh.Address) ||
		stored.Tags[model.TagRefIFOPT] != rec.GlobalID ||
		!coordsClose(stored.Location.Lat(), fresh.Location.Lat()) ||
		!coordsClose(stored.Location.Lon(), fresh.Location.Lon())

	if !changed {
		return false, nil
	}

	if !opts.DryRun {
		fresh.Invalidate = true
		if err := e.gw.UpdateSynthetic(ctx, fresh); err != nil {
			return false, err
		}
	}
	e.log.Debug("updated synthetic stop",
		zap.Int64("id", id), zap.String("ifopt", rec.GlobalID))
	return true, nil
}

// buildSynthetic derives the synthetic stop for a record.
func buildSynthetic(id int64, rec *model.IncomingRecord) model.SyntheticRecord {
	tags := map[string]string{model.TagRefIFOPT: rec.GlobalID}
	if wp := rec.WikipediaTitle(); wp != "" {
		tags[model.TagWikipedia] = wp
	}

	return model.SyntheticRecord{
		ID:       id,
		Names:    rec.Names(),
		Address:  rec.Address(),
		Tags:     tags,
		Location: rec.Location,
	}
}

// containsAll reports whether every entry of sub is present in m with the
// same value. Key order is irrelevant; only content counts.
func containsAll(m, sub map[string]string) bool {
	for k, v := range sub {
		if m[k] != v {
			return false
		}
	}
	return true
}

// mapsEqual compares two maps by content, order-independent.
func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	return containsAll(a, b)
}

// coordsClose compares one coordinate axis within CoordTolerance.
func coordsClose(a, b float64) bool {
	return math.Abs(a-b) <= CoordTolerance
}
