package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WorkerFunc processes one work unit and returns its point batch.
type WorkerFunc func(ctx context.Context, u WorkUnit) (*PointBatch, error)

// UnitResult is the outcome of one work unit. Exactly one of Batch and Err
// is meaningful; a failed unit carries a *UnitFailure in Err.
type UnitResult struct {
	Unit  string
	Batch *PointBatch
	Err   error
}

// Dispatcher runs batches of work units over a bounded worker pool. The
// zero value is usable; Log, Metrics, and Progress are optional.
type Dispatcher struct {
	Log      *slog.Logger
	Metrics  *Metrics
	Progress ProgressSink
}

// Run executes every unit and returns a map from unit name to result. The
// pool size is clamped to the number of units; poolSize <= 1 runs the batch
// strictly sequentially. Workers pull units in any order, so completion
// order is unspecified; callers that need input order re-project the map
// with OrderResults.
//
// A worker error or panic is captured as that unit's result and never
// aborts siblings. When ctx is cancelled, units not yet started are
// recorded as failed with the context error; units already started run to
// completion.
func (d *Dispatcher) Run(ctx context.Context, units []WorkUnit, worker WorkerFunc, poolSize int) map[string]UnitResult {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	batchID := uuid.NewString()
	start := time.Now()

	if poolSize > len(units) {
		poolSize = len(units)
	}
	log.Debug("dispatching batch", "batch_id", batchID, "units", len(units), "pool_size", poolSize)

	results := make(map[string]UnitResult, len(units))
	var mu sync.Mutex
	var done atomic.Int64

	record := func(u WorkUnit, batch *PointBatch, err error) {
		res := UnitResult{Unit: u.Name, Batch: batch, Err: err}
		if err != nil {
			res.Err = &UnitFailure{Unit: u.Name, Err: err}
			res.Batch = nil
			log.Warn("work unit failed", "batch_id", batchID, "unit", u.Name, "error", err)
			if d.Metrics != nil {
				d.Metrics.UnitsFailed.Inc()
			}
		} else if d.Metrics != nil {
			d.Metrics.UnitsCompleted.Inc()
			d.Metrics.PointsLoaded.Add(float64(batch.Len()))
		}
		mu.Lock()
		results[u.Name] = res
		mu.Unlock()
		if d.Progress != nil {
			d.Progress.Progress(int(done.Add(1)), len(units))
		} else {
			done.Add(1)
		}
	}

	runOne := func(u WorkUnit) {
		if err := ctx.Err(); err != nil {
			record(u, nil, err)
			return
		}
		batch, err := invoke(ctx, worker, u)
		record(u, batch, err)
	}

	if poolSize <= 1 {
		for _, u := range units {
			runOne(u)
		}
	} else {
		queue := make(chan WorkUnit)
		g := new(errgroup.Group)
		for i := 0; i < poolSize; i++ {
			g.Go(func() error {
				for u := range queue {
					runOne(u)
				}
				return nil
			})
		}
		for _, u := range units {
			queue <- u
		}
		close(queue)
		g.Wait()
	}

	if d.Metrics != nil {
		d.Metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}
	log.Debug("batch complete", "batch_id", batchID, "units", len(units), "elapsed", time.Since(start))
	return results
}

// invoke calls the worker and converts a panic into an ordinary error so a
// crashed worker cannot take the whole batch down.
func invoke(ctx context.Context, worker WorkerFunc, u WorkUnit) (batch *PointBatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch = nil
			err = fmt.Errorf("worker panicked: %v", r)
		}
	}()
	return worker(ctx, u)
}

// OrderResults re-projects a result map onto the originally planned unit
// order. Names absent from the map are skipped, so a plan that dropped
// units leaves no gaps.
func OrderResults(units []WorkUnit, results map[string]UnitResult) []UnitResult {
	out := make([]UnitResult, 0, len(units))
	for _, u := range units {
		if res, ok := results[u.Name]; ok {
			out = append(out, res)
		}
	}
	return out
}
