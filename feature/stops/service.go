package stops

import (
	"context"
	"time"

	"stop-importer/core/logger"
	"stop-importer/feature/stops/feed"
	"stop-importer/feature/stops/gateway"
	"stop-importer/feature/stops/importance"
	"stop-importer/feature/stops/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunOptions control one import run.
type RunOptions struct {
	// Invalidate marks every touched stop as needing reindexing.
	Invalidate bool
	// DryRun classifies and reports but applies no mutation.
	DryRun bool
	// SkipImportance skips the importance pass entirely.
	SkipImportance bool
	// ImportanceBaseline is the minimum score per stop group; a value of 0
	// (or less) disables the importance pass.
	ImportanceBaseline float64
	// ImportanceServiced is the maximum score bonus for serviced lines.
	ImportanceServiced float64
}

// Service orchestrates an import run: the importance pass over the full
// feed, then the reconciliation pass, then the summary report.
type Service struct {
	gw     gateway.Gateway
	source feed.Source
	engine *reconcile.Engine
	log    *zap.Logger
}

// NewService wires the orchestrator.
func NewService(gw gateway.Gateway, source feed.Source, log *zap.Logger, dropStates []string) *Service {
	return &Service{
		gw:     gw,
		source: source,
		engine: reconcile.NewEngine(gw, log, dropStates),
		log:    log,
	}
}

// Run executes one full import run and returns the reconciliation summary.
// The feed is opened once per pass; the importance pass runs first because
// it needs complete per-group statistics before any score is written.
func (s *Service) Run(ctx context.Context, opts RunOptions) (reconcile.Summary, error) {
	log := logger.WithRunID(s.log, uuid.NewString())
	start := time.Now()

	log.Info("starting stop import",
		zap.String("feed", s.source.Name()),
		zap.Bool("invalidate", opts.Invalidate),
		zap.Bool("dry_run", opts.DryRun))

	if !opts.SkipImportance && opts.ImportanceBaseline > 0 {
		if err := s.runImportance(ctx, log, opts); err != nil {
			return reconcile.Summary{}, err
		}
	}

	stream, err := feed.Open(ctx, s.source)
	if err != nil {
		return reconcile.Summary{}, err
	}
	defer stream.Close()

	sum, err := s.engine.Run(ctx, stream, reconcile.Options{
		Invalidate: opts.Invalidate,
		DryRun:     opts.DryRun,
	})
	if err != nil {
		return sum, err
	}

	log.Info("stop import finished",
		zap.Int("matched", sum.Matched),
		zap.Int("updated", sum.Updated),
		zap.Int("inserted", sum.Inserted),
		zap.Int("deleted", sum.Deleted),
		zap.Int("dropped", sum.Dropped),
		zap.Int("duplicates", sum.Duplicates),
		zap.Duration("took", time.Since(start)))

	return sum, nil
}

// runImportance executes the importance pass over its own feed stream.
func (s *Service) runImportance(ctx context.Context, log *zap.Logger, opts RunOptions) error {
	stream, err := feed.Open(ctx, s.source)
	if err != nil {
		return err
	}
	defer stream.Close()

	groups, err := importance.Aggregate(stream)
	if err != nil {
		return err
	}

	written, err := importance.Apply(ctx, s.gw, log, groups,
		opts.ImportanceBaseline, opts.ImportanceServiced, opts.DryRun)
	if err != nil {
		return err
	}

	log.Info("importance pass finished",
		zap.Int("groups", len(groups)),
		zap.Int("written", written))
	return nil
}
