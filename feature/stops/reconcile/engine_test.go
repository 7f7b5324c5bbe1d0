package reconcile

import (
	"context"
	"io"
	"testing"

	"stop-importer/feature/stops/gateway/gatewaytest"
	"stop-importer/feature/stops/model"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dropStates = []string{"NO_MATCH_AND_SEEMS_UNSERVED", "MATCHED_THOUGH_DISTANT"}

type sliceStream struct {
	recs []*model.IncomingRecord
	i    int
}

func (s *sliceStream) Next() (*model.IncomingRecord, error) {
	if s.i >= len(s.recs) {
		return nil, io.EOF
	}
	rec := s.recs[s.i]
	s.i++
	return rec, nil
}

func stream(recs ...*model.IncomingRecord) *sliceStream {
	return &sliceStream{recs: recs}
}

func newEngine(fake *gatewaytest.Fake) *Engine {
	return NewEngine(fake, zap.NewNop(), dropStates)
}

func synthetic(id int64, ifopt, name string, lon, lat float64) model.SyntheticRecord {
	return model.SyntheticRecord{
		ID:       id,
		Names:    map[string]string{"name": name},
		Address:  map[string]string{},
		Tags:     map[string]string{model.TagRefIFOPT: ifopt},
		Location: orb.Point{lon, lat},
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	fake := gatewaytest.New()

	// Existing but nameless native object for row 1.
	nativeKey := model.NativeObjectKey{Kind: model.KindNode, ID: 1591983159}
	fake.AddNative(nativeKey, nil)

	// Row 3 already exists as a synthetic stop, stored roughly 50m away.
	fake.AddSynthetic(synthetic(model.MinSyntheticID+4, "DE:X:1:1:3", "Dorfplatz", 8.90, 50.10))

	// A synthetic stop absent from the feed; must be retired.
	fake.AddSynthetic(synthetic(model.MinSyntheticID+7, "DE:X:1:1:9", "Geisterhalt", 8.95, 50.15))

	feed := stream(
		&model.IncomingRecord{GlobalID: "DE:X:1:1:1", Name: "Freiheitsplatz", OSMID: "n1591983159",
			Location: orb.Point{8.9214, 50.1338}},
		&model.IncomingRecord{GlobalID: "DE:X:1:1:2", Name: "Marktplatz",
			Location: orb.Point{8.9301, 50.1290}},
		&model.IncomingRecord{GlobalID: "DE:X:1:1:3", Name: "Dorfplatz",
			Location: orb.Point{8.90, 50.1005}}, // ~50m north of the stored row
	)

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Deleted)

	// Row 1: native object tagged and its name backfilled.
	native := fake.Native[nativeKey]
	assert.Equal(t, "DE:X:1:1:1", native.Tags[model.TagRefIFOPT])
	assert.Equal(t, "de:IFOPT_DE:X:1", native.Tags[model.TagWikipedia])
	assert.Equal(t, map[string]string{"name": "Freiheitsplatz"}, native.Names)

	// Row 2: inserted one above the current maximum synthetic id.
	require.Len(t, fake.Inserts, 1)
	assert.Equal(t, model.MinSyntheticID+8, fake.Inserts[0])
	inserted := fake.Synthetic[fake.Inserts[0]]
	assert.Equal(t, "DE:X:1:1:2", inserted.IFOPT())

	// Row 3: updated in place with the invalidate flag set.
	require.Len(t, fake.Updates, 1)
	updated := fake.Synthetic[fake.Updates[0]]
	assert.True(t, updated.Invalidate)
	assert.InDelta(t, 50.1005, updated.Location.Lat(), 1e-9)

	// Stale stop retired in a single batch, strictly last.
	require.Len(t, fake.Deletes, 1)
	assert.Equal(t, []int64{model.MinSyntheticID + 7}, fake.Deletes[0])
	assert.NotContains(t, fake.Synthetic, model.MinSyntheticID+7)
}

func TestEngine_Idempotence(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddNative(model.NativeObjectKey{Kind: model.KindNode, ID: 42}, map[string]string{"name": "Hbf"})

	records := func() *sliceStream {
		return stream(
			&model.IncomingRecord{GlobalID: "DE:X:1:1:1", Name: "Hbf", OSMID: "n42",
				Location: orb.Point{8.92, 50.13}},
			&model.IncomingRecord{GlobalID: "DE:X:1:1:2", Name: "Markt",
				Location: orb.Point{8.93, 50.12}},
		)
	}

	engine := newEngine(fake)

	first, err := engine.Run(context.Background(), records(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Matched: 1, Inserted: 1}, first)

	writes := fake.WriteCount()

	second, err := engine.Run(context.Background(), records(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Matched)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, writes, fake.WriteCount(), "second run must perform zero writes")
}

func TestEngine_DuplicateSuppression(t *testing.T) {
	fake := gatewaytest.New()

	feed := stream(
		&model.IncomingRecord{GlobalID: "DE:X:1:1:5", Name: "First", Location: orb.Point{8.1, 50.1}},
		&model.IncomingRecord{GlobalID: "DE:X:1:1:5", Name: "Second", Location: orb.Point{8.2, 50.2}},
	)

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Duplicates)
	require.Len(t, fake.Inserts, 1)
	assert.Equal(t, "First", fake.Synthetic[fake.Inserts[0]].Names["name"],
		"first occurrence wins")
}

func TestEngine_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name       string
		latDelta   float64
		wantUpdate bool
	}{
		{"below tolerance", 0.0000005, false},
		{"above tolerance", 0.000002, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := gatewaytest.New()
			fake.AddSynthetic(synthetic(model.MinSyntheticID, "DE:X:1:1:3", "Halt", 8.90, 50.10))

			feed := stream(&model.IncomingRecord{
				GlobalID: "DE:X:1:1:3", Name: "Halt",
				Location: orb.Point{8.90, 50.10 + tt.latDelta},
			})

			sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
			require.NoError(t, err)

			if tt.wantUpdate {
				assert.Equal(t, 1, sum.Updated)
				assert.Len(t, fake.Updates, 1)
			} else {
				assert.Equal(t, 0, sum.Updated)
				assert.Empty(t, fake.Updates)
			}
		})
	}
}

func TestEngine_DropFilter(t *testing.T) {
	fake := gatewaytest.New()

	feed := stream(&model.IncomingRecord{
		GlobalID: "DE:X:1:1:8", Name: "Fern", MatchState: "MATCHED_THOUGH_DISTANT",
		Location: orb.Point{8.9, 50.1},
	})

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	assert.Equal(t, Summary{Dropped: 1}, sum)
	assert.Zero(t, fake.WriteCount())
}

func TestEngine_CoverageInvariant(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddNative(model.NativeObjectKey{Kind: model.KindWay, ID: 7}, map[string]string{"name": "Steig A"})

	// Pre-existing synthetic stops: one stays, one is dropped this run, one
	// vanished from the feed.
	fake.AddSynthetic(synthetic(model.MinSyntheticID, "DE:S:1:1:1", "Bleibt", 8.1, 50.1))
	fake.AddSynthetic(synthetic(model.MinSyntheticID+1, "DE:S:1:1:2", "Verworfen", 8.2, 50.2))
	fake.AddSynthetic(synthetic(model.MinSyntheticID+2, "DE:S:1:1:3", "Weg", 8.3, 50.3))

	feed := stream(
		&model.IncomingRecord{GlobalID: "DE:S:1:1:1", Name: "Bleibt", Location: orb.Point{8.1, 50.1}},
		&model.IncomingRecord{GlobalID: "DE:S:1:1:2", Name: "Verworfen",
			MatchState: "NO_MATCH_AND_SEEMS_UNSERVED", Location: orb.Point{8.2, 50.2}},
		&model.IncomingRecord{GlobalID: "DE:S:1:1:4", Name: "Neu", Location: orb.Point{8.4, 50.4}},
		&model.IncomingRecord{GlobalID: "DE:S:1:1:5", Name: "Steig A", OSMID: "w7",
			Location: orb.Point{8.5, 50.5}},
	)

	_, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	var remaining []string
	for _, rec := range fake.Synthetic {
		remaining = append(remaining, rec.IFOPT())
	}
	// Exactly the non-dropped, non-natively-matched identifiers of the feed.
	assert.ElementsMatch(t, []string{"DE:S:1:1:1", "DE:S:1:1:4"}, remaining)
}

func TestEngine_EmptyIdentifierFatal(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddSynthetic(synthetic(model.MinSyntheticID, "DE:X:1:1:1", "Halt", 8.9, 50.1))

	feed := stream(&model.IncomingRecord{Name: "Kaputt", Location: orb.Point{8.9, 50.1}})

	_, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
	assert.Empty(t, fake.Deletes, "deletion pass must not run after a fatal error")
}

func TestEngine_MalformedNativeKey(t *testing.T) {
	fake := gatewaytest.New()

	feed := stream(&model.IncomingRecord{
		GlobalID: "DE:X:1:1:2", Name: "Halt", OSMID: "x99",
		Location: orb.Point{8.9, 50.1},
	})

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	// A malformed key degrades to the synthetic path instead of failing.
	assert.Equal(t, 0, sum.Matched)
	assert.Equal(t, 1, sum.Inserted)
}

func TestEngine_NativeObjectGone(t *testing.T) {
	fake := gatewaytest.New()

	feed := stream(&model.IncomingRecord{
		GlobalID: "DE:X:1:1:2", Name: "Halt", OSMID: "n12345",
		Location: orb.Point{8.9, 50.1},
	})

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Matched)
	assert.Equal(t, 1, sum.Inserted)
}

func TestEngine_ForceInvalidate(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddSynthetic(synthetic(model.MinSyntheticID, "DE:X:1:1:3", "Halt", 8.90, 50.10))

	feed := stream(&model.IncomingRecord{
		GlobalID: "DE:X:1:1:3", Name: "Halt", Location: orb.Point{8.90, 50.10},
	})

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{Invalidate: true})
	require.NoError(t, err)

	// Content is unchanged, but invalidation forces the write.
	assert.Equal(t, 1, sum.Updated)
	require.Len(t, fake.Updates, 1)
	assert.True(t, fake.Synthetic[fake.Updates[0]].Invalidate)
}

func TestEngine_DryRun(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddNative(model.NativeObjectKey{Kind: model.KindNode, ID: 42}, map[string]string{"name": "Hbf"})
	fake.AddSynthetic(synthetic(model.MinSyntheticID, "DE:X:1:1:9", "Weg", 8.8, 50.0))

	feed := stream(
		&model.IncomingRecord{GlobalID: "DE:X:1:1:1", Name: "Hbf", OSMID: "n42",
			Location: orb.Point{8.92, 50.13}},
		&model.IncomingRecord{GlobalID: "DE:X:1:1:2", Name: "Neu", Location: orb.Point{8.93, 50.12}},
	)

	sum, err := newEngine(fake).Run(context.Background(), feed, Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, Summary{Matched: 1, Inserted: 1, Deleted: 1}, sum)
	assert.Zero(t, fake.WriteCount(), "dry run must not write")
	assert.Contains(t, fake.Synthetic, model.MinSyntheticID, "dry run must not delete")
}

func TestEngine_StorageErrorPropagates(t *testing.T) {
	fake := gatewaytest.New()
	fake.Err = assert.AnError

	_, err := newEngine(fake).Run(context.Background(), stream(), Options{})
	assert.ErrorIs(t, err, assert.AnError)
}
