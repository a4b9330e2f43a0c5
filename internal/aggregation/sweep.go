package aggregation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/galaxynn/MDMS/internal/repository"
	"github.com/galaxynn/MDMS/internal/store"
)

// TxRunner opens a unit-of-work, committing when fn returns nil.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx store.DBTX) error) error
}

// SweepReport describes a committed repair sweep.
type SweepReport struct {
	Movies   int
	Repaired int
	Duration time.Duration
}

// Sweeper recomputes every movie in one transaction. It repairs stats left
// stale by writes that bypassed the engine, such as bulk imports or cascaded
// user deletes.
type Sweeper struct {
	engine *Engine
	runner TxRunner
	logger *log.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(engine *Engine, runner TxRunner, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{engine: engine, runner: runner, logger: logger}
}

// Run recomputes all movies and commits once. If any recompute fails the
// whole sweep rolls back, the failure is logged and returned, and the
// returned report only carries the elapsed time.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	start := time.Now()

	var report SweepReport
	err := s.runner.RunInTx(ctx, func(tx store.DBTX) error {
		repo := repository.New(tx)

		ids, err := repo.Movies.ListIDs(ctx)
		if err != nil {
			return err
		}

		report = SweepReport{Movies: len(ids)}
		for _, id := range ids {
			_, changed, err := s.engine.recompute(ctx, repo, id)
			if err != nil {
				return fmt.Errorf("recompute movie %s: %w", id, err)
			}
			if changed {
				report.Repaired++
			}
		}
		return nil
	})

	elapsed := time.Since(start)
	sweepDuration.Observe(elapsed.Seconds())

	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.Printf("aggregation: repair sweep rolled back after %s: %v", elapsed, err)
		return SweepReport{Duration: elapsed}, fmt.Errorf("repair sweep: %w", err)
	}

	report.Duration = elapsed
	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepRepairedTotal.Add(float64(report.Repaired))
	s.logger.Printf("aggregation: repair sweep committed (movies=%d, repaired=%d, took=%s)",
		report.Movies, report.Repaired, elapsed)
	return report, nil
}
