package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delayUnits builds n units whose workers finish in roughly reverse order,
// to exercise out-of-order completion.
func delayUnits(n int) []WorkUnit {
	units := make([]WorkUnit, n)
	for i := range units {
		units[i] = WorkUnit{
			Name:     fmt.Sprintf("unit%02d", i+1),
			Geometry: Circle{X: float64(i), Y: 0, R: 1},
			Tiles:    []TileRecord{},
		}
	}
	return units
}

func TestRunOrderIndependentOfPoolSize(t *testing.T) {
	units := delayUnits(8)
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		// Later units finish first.
		i := int(u.Geometry.(Circle).X)
		time.Sleep(time.Duration(8-i) * time.Millisecond)
		return &PointBatch{Points: []Point{{X: float64(i + 1)}}}, nil
	}

	for _, poolSize := range []int{1, 4, 100} {
		t.Run(fmt.Sprintf("pool %d", poolSize), func(t *testing.T) {
			var d Dispatcher
			results := d.Run(context.Background(), units, worker, poolSize)
			require.Len(t, results, len(units))

			ordered := OrderResults(units, results)
			require.Len(t, ordered, len(units))
			for i, res := range ordered {
				assert.Equal(t, units[i].Name, res.Unit, "result %d out of order", i)
				require.NoError(t, res.Err)
				assert.Equal(t, float64(i+1), res.Batch.Points[0].X)
			}
		})
	}
}

func TestRunProgressCountsEachUnitOnce(t *testing.T) {
	units := delayUnits(10)
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		if u.Name == "unit05" {
			return nil, errors.New("boom")
		}
		return &PointBatch{}, nil
	}

	var mu sync.Mutex
	var seen []int
	d := Dispatcher{
		Progress: ProgressFunc(func(done, total int) {
			mu.Lock()
			seen = append(seen, done)
			mu.Unlock()
			assert.Equal(t, 10, total)
		}),
	}
	d.Run(context.Background(), units, worker, 4)

	// Every value 1..10 exactly once: no lost updates, no double counts,
	// failures included.
	require.Len(t, seen, 10)
	sort.Ints(seen)
	for i, v := range seen {
		assert.Equal(t, i+1, v)
	}
}

func TestRunIsolatesUnitFailures(t *testing.T) {
	units := delayUnits(3)
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		if u.Name == "unit02" {
			return nil, errors.New("tile went missing")
		}
		return &PointBatch{Points: []Point{{}}}, nil
	}

	var d Dispatcher
	results := d.Run(context.Background(), units, worker, 2)
	require.Len(t, results, 3)

	require.NoError(t, results["unit01"].Err)
	require.NoError(t, results["unit03"].Err)

	failed := results["unit02"]
	require.Error(t, failed.Err)
	assert.Nil(t, failed.Batch)
	var uf *UnitFailure
	require.ErrorAs(t, failed.Err, &uf)
	assert.Equal(t, "unit02", uf.Unit)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	units := delayUnits(2)
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		if u.Name == "unit01" {
			panic("worker crashed")
		}
		return &PointBatch{}, nil
	}

	var d Dispatcher
	results := d.Run(context.Background(), units, worker, 2)

	var uf *UnitFailure
	require.ErrorAs(t, results["unit01"].Err, &uf)
	assert.Contains(t, uf.Err.Error(), "worker crashed")
	require.NoError(t, results["unit02"].Err)
}

func TestRunSequentialWhenPoolIsOne(t *testing.T) {
	units := delayUnits(5)
	var active, maxActive int
	var mu sync.Mutex
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return &PointBatch{}, nil
	}

	var d Dispatcher
	d.Run(context.Background(), units, worker, 1)
	assert.Equal(t, 1, maxActive, "poolSize 1 must run strictly sequentially")

	d.Run(context.Background(), units, worker, 0)
	assert.Equal(t, 1, maxActive, "poolSize 0 must run strictly sequentially")
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	units := delayUnits(4)
	var invoked int
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		invoked++
		return &PointBatch{}, nil
	}

	var d Dispatcher
	results := d.Run(ctx, units, worker, 1)
	assert.Zero(t, invoked, "no unit should start under a cancelled context")
	require.Len(t, results, 4)
	for _, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	var d Dispatcher
	results := d.Run(context.Background(), nil, func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		t.Fatal("worker must not be invoked")
		return nil, nil
	}, 4)
	assert.Empty(t, results)
}
