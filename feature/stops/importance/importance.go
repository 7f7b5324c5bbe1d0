package importance

import (
	"context"
	"io"
	"math"
	"sort"

	"stop-importer/feature/stops/gateway"
	"stop-importer/feature/stops/model"

	"go.uber.org/zap"
)

// TitlePrefix keys importance entries in the store.
const TitlePrefix = "IFOPT_"

// LineSaturation is the number of distinct serviced lines at which the
// line-count bonus maxes out. Additional lines beyond it do not raise the
// score further; a deliberate, tunable saturation point.
const LineSaturation = 25

// scoreTolerance gates importance writes; differences at or below it are
// treated as unchanged.
const scoreTolerance = 1e-5

// modeBonus is the extra importance per transport mode. Rail-like modes
// rank above generic bus service; unknown modes contribute nothing.
var modeBonus = map[string]float64{
	"train":      0.005,
	"ferry":      0.004,
	"light_rail": 0.003,
}

// Stats accumulates the service statistics of one stop group.
type Stats struct {
	// Lines is the set of distinct serviced line labels.
	Lines map[string]struct{}
	// Modes is the set of distinct transport modes observed.
	Modes map[string]struct{}
}

// RecordStream is the lazy feed consumed by the aggregator.
type RecordStream interface {
	Next() (*model.IncomingRecord, error)
}

// Aggregate tallies per-group statistics over the full feed. Records are
// grouped by the three-segment identifier prefix; rows without serviced
// lines (or with an identifier too short to group) are ignored.
func Aggregate(stream RecordStream) (map[string]Stats, error) {
	groups := make(map[string]Stats)

	for {
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(rec.Lines) == 0 {
			continue
		}
		key := model.GroupKey(rec.GlobalID)
		if key == "" {
			continue
		}

		stats, ok := groups[key]
		if !ok {
			stats = Stats{Lines: make(map[string]struct{}), Modes: make(map[string]struct{})}
			groups[key] = stats
		}
		for _, line := range rec.Lines {
			stats.Lines[line] = struct{}{}
		}
		if rec.Mode != "" {
			stats.Modes[rec.Mode] = struct{}{}
		}
	}

	return groups, nil
}

// Score computes the importance of one group:
// baseline + min(1, lines/25)*maxServiced + the highest mode bonus.
func Score(stats Stats, baseline, maxServiced float64) float64 {
	score := baseline
	score += math.Min(1.0, float64(len(stats.Lines))/LineSaturation) * maxServiced

	best := 0.0
	for mode := range stats.Modes {
		if b := modeBonus[mode]; b > best {
			best = b
		}
	}
	return score + best
}

// Apply upserts the computed scores. An entry is only written when absent or
// when the stored score differs by more than the tolerance, so re-applying
// identical statistics performs zero writes. It returns the number of
// entries written.
func Apply(ctx context.Context, gw gateway.Gateway, log *zap.Logger, groups map[string]Stats, baseline, maxServiced float64, dryRun bool) (int, error) {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	written := 0
	for _, key := range keys {
		score := Score(groups[key], baseline, maxServiced)
		title := TitlePrefix + key

		existing, ok, err := gw.ReadImportance(ctx, title)
		if err != nil {
			return written, err
		}
		if ok && math.Abs(existing-score) <= scoreTolerance {
			continue
		}

		if !dryRun {
			if err := gw.UpsertImportance(ctx, title, score); err != nil {
				return written, err
			}
		}
		written++
		log.Debug("wrote stop importance",
			zap.String("title", title), zap.Float64("score", score))
	}

	return written, nil
}
