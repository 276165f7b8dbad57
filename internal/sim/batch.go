package sim

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jialuechen/genmarket/internal/config"
	"github.com/jialuechen/genmarket/internal/domain"
)

// Batch fans N independent runs out across a fixed-size worker pool.
// Each worker owns its book, generator, and strategy state exclusively
// for the run's duration, so no state is shared across goroutines.
type Batch struct {
	Logger  *zap.Logger
	Workers int
}

// Run executes one run per seed and returns results ordered by run
// index regardless of completion order. Per-run failures are captured
// in their result; the batch itself always completes. The configured
// batch timeout is advisory: when it expires, in-flight runs finish
// their current event and are reported as aborted.
func (b *Batch) Run(ctx context.Context, doc *config.Document) []domain.SimulationResult {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := b.Workers
	if workers <= 0 {
		workers = doc.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	if doc.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(doc.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	seeds := doc.RunSeeds()
	results := make([]domain.SimulationResult, len(seeds))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			runLogger := logger.With(zap.Int("run_index", i), zap.Int64("seed", seed))
			results[i] = ExecuteWithLogger(ctx, RunSpec{Index: i, Seed: seed, Doc: doc}, runLogger)
			return nil
		})
	}
	// Join barrier: aggregation only happens after every worker is done.
	_ = g.Wait()

	return results
}
