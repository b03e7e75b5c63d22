package pointfile

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Geethen/lidR/catalog"
)

// cacheTTL bounds how long a decoded tile stays cached. Source tiles are
// never mutated during a batch, so a generous TTL is safe.
const cacheTTL = 10 * time.Minute

// CachedStore wraps a Store with an LRU cache of decoded tiles. Adjacent
// work units usually share border tiles, so caching the decoded points
// avoids re-reading and re-decompressing the same file once per unit. A
// singleflight group makes sure concurrent workers asking for the same tile
// trigger a single read.
type CachedStore struct {
	*Store
	tiles    *ccache.Cache[[]catalog.Point]
	inflight singleflight.Group
}

// NewCachedStore builds a CachedStore holding up to maxSize cache entries,
// pruning itemsToPrune at a time.
func NewCachedStore(maxSize int64, itemsToPrune uint32) *CachedStore {
	return &CachedStore{
		Store: NewStore(),
		tiles: ccache.New(ccache.Configure[[]catalog.Point]().MaxSize(maxSize).ItemsToPrune(itemsToPrune)),
	}
}

// Read loads the given tiles through the cache and keeps the points passing
// the filter. Cached tile slices are shared between units and never
// mutated; filtered points are copied into the fresh batch.
func (s *CachedStore) Read(ctx context.Context, paths []string, flt catalog.Filter) (*catalog.PointBatch, error) {
	batch := &catalog.PointBatch{Points: []catalog.Point{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points, err := s.tile(path)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if flt.Keep(p.X, p.Y, p.Z, p.Classification) {
				batch.Points = append(batch.Points, p)
			}
		}
	}
	return batch, nil
}

func (s *CachedStore) tile(path string) ([]catalog.Point, error) {
	if item := s.tiles.Get(path); item != nil && !item.Expired() {
		return item.Value(), nil
	}
	v, err, _ := s.inflight.Do(path, func() (any, error) {
		points, err := ReadTile(path)
		if err != nil {
			return nil, err
		}
		s.tiles.Set(path, points, cacheTTL)
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]catalog.Point), nil
}

// Write persists the batch and drops any cached copy of the written path so
// a later read sees the new contents.
func (s *CachedStore) Write(ctx context.Context, path string, batch *catalog.PointBatch) (catalog.WriteReport, error) {
	rep, err := s.Store.Write(ctx, path, batch)
	if err == nil {
		s.tiles.Delete(path)
	}
	return rep, err
}
