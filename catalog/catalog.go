// Package catalog manages a collection of spatially tiled point-cloud files
// and answers region-of-interest queries and whole-catalog re-tiling against
// it. The binary tile format itself is a collaborator behind the Store
// interface; the catalog core only plans, dispatches, and reassembles.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Catalog is an opened collection of point-cloud tiles. The tile index is
// built once at open and shared read-only by every worker afterward.
type Catalog struct {
	dir   string
	store Store
	index *TileIndex
	log   *slog.Logger

	dispatcher Dispatcher
}

// Option customizes an opened catalog.
type Option func(*Catalog)

// WithLogger sets the catalog's logger; slog.Default is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(c *Catalog) { c.log = log }
}

// WithMetrics attaches prometheus collectors to the catalog's dispatcher.
func WithMetrics(m *Metrics) Option {
	return func(c *Catalog) { c.dispatcher.Metrics = m }
}

// WithProgress attaches a progress sink to the catalog's dispatcher.
func WithProgress(sink ProgressSink) Option {
	return func(c *Catalog) { c.dispatcher.Progress = sink }
}

// Open scans dir for tile files with the store's extension and builds the
// catalog's tile index from their headers, going through the sidecar index
// when it is still fresh. Opening an empty directory succeeds with an empty
// catalog; a malformed tile set fails with an IndexError.
func Open(ctx context.Context, dir string, store Store, opts ...Option) (*Catalog, error) {
	c := &Catalog{dir: dir, store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher.Log = c.log

	entries, err := scanTiles(dir, store.Extension())
	if err != nil {
		return nil, err
	}
	records, err := loadTileRecords(ctx, dir, store, entries, c.log)
	if err != nil {
		return nil, err
	}
	c.index, err = NewTileIndex(records)
	if err != nil {
		return nil, err
	}
	c.log.Info("catalog opened", "dir", dir, "tiles", c.index.Len())
	return c, nil
}

// tileEntry pairs a tile path with its modification time, the freshness key
// of the sidecar index.
type tileEntry struct {
	path  string
	mtime int64
}

// scanTiles lists the tile files of dir in deterministic path order.
func scanTiles(dir, ext string) ([]tileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("scanning catalog dir %s: %w", dir, err)
	}
	sort.Strings(matches)
	entries := make([]tileEntry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat tile %s: %w", path, err)
		}
		entries = append(entries, tileEntry{path: path, mtime: info.ModTime().Unix()})
	}
	return entries, nil
}

// loadTileRecords resolves bounding boxes for every tile, from the sidecar
// index when fresh, otherwise by reading each tile header concurrently and
// rewriting the sidecar.
func loadTileRecords(ctx context.Context, dir string, store Store, entries []tileEntry, log *slog.Logger) ([]TileRecord, error) {
	if records, ok := loadSidecar(dir, entries, log); ok {
		return records, nil
	}
	records, err := readHeaders(ctx, store, entries)
	if err != nil {
		return nil, err
	}
	if err := saveSidecar(dir, entries, records); err != nil {
		// The sidecar is a cache; failing to persist it is not fatal.
		log.Warn("could not persist sidecar index", "dir", dir, "error", err)
	}
	return records, nil
}

// readHeaders loads every tile's header concurrently, bounded to a small
// pool, and returns records in the entries' order.
func readHeaders(ctx context.Context, store Store, entries []tileEntry) ([]TileRecord, error) {
	records := make([]TileRecord, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := store.Header(e.path)
			if err != nil {
				return fmt.Errorf("reading header of %s: %w", e.path, err)
			}
			records[i] = TileRecord{Path: e.path, Bounds: h.Bounds}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// Index returns the catalog's tile index.
func (c *Catalog) Index() *TileIndex { return c.index }

// Dir returns the catalog's directory.
func (c *Catalog) Dir() string { return c.dir }

// Extent returns the union bounding box of every tile.
func (c *Catalog) Extent() (Bounds, bool) { return c.index.Extent() }

// Summary describes the catalog from tile headers alone, without loading
// any point data.
type Summary struct {
	Dir        string
	TileCount  int
	PointCount uint64
	Extent     Bounds
}

// Summarize reads every tile header and aggregates counts and extent.
func (c *Catalog) Summarize(ctx context.Context) (Summary, error) {
	s := Summary{Dir: c.dir, TileCount: c.index.Len()}
	s.Extent, _ = c.index.Extent()
	for _, t := range c.index.Tiles() {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		h, err := c.store.Header(t.Path)
		if err != nil {
			return Summary{}, fmt.Errorf("reading header of %s: %w", t.Path, err)
		}
		s.PointCount += h.PointCount
	}
	return s, nil
}

// QueryOptions tunes a batch of ROI queries.
type QueryOptions struct {
	// PoolSize bounds the extraction worker pool; <= 1 runs sequentially.
	PoolSize int
}

// Query extracts the points covering each ROI, merging data across tiles
// and tagging buffer zones when the ROI carries a buffer. Results are
// aligned to the original ROI order after dropping ROIs with no
// intersecting tiles, regardless of pool size or completion order. A failed
// unit appears in its slot with a *UnitFailure error; siblings are
// unaffected.
func (c *Catalog) Query(ctx context.Context, set ROISet, opt QueryOptions) ([]UnitResult, error) {
	units, err := PlanROIs(c.index, set)
	if err != nil {
		return nil, err
	}
	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		flt := u.Extra
		flt.Shape = u.Geometry
		flt.Buffer = u.Buffer
		batch, err := c.store.Read(ctx, u.Paths(), flt)
		if err != nil {
			return nil, err
		}
		if u.Buffer > 0 {
			batch.Zones = ClassifyBuffer(batch.Points, u.Geometry, u.Buffer)
		}
		return batch, nil
	}
	results := c.dispatcher.Run(ctx, units, worker, opt.PoolSize)
	return OrderResults(units, results), nil
}

// Retile re-partitions the whole catalog into a new set of output tiles in
// opt.OutputDir and returns the freshly opened output catalog. The
// destination is checked for existing tiles before any write starts; empty
// outputs from off-catalog grid cells are deleted after writing. Per-cluster
// failures are reported in the result slice and do not abort the batch, but
// leave the new catalog short of those tiles.
func (c *Catalog) Retile(ctx context.Context, opt RetileOptions) (*Catalog, []UnitResult, error) {
	ext := c.store.Extension()
	if err := checkDestination(opt.OutputDir, ext); err != nil {
		return nil, nil, err
	}

	var clusters []Cluster
	var err error
	if opt.TilingSize > 0 {
		clusters, err = PlanClustersGrid(c.index, opt, ext)
	} else {
		clusters, err = PlanClustersByFile(c.index, opt, ext)
	}
	if err != nil {
		return nil, nil, err
	}

	// Only a plan that passed every check gets to touch the filesystem.
	if err := os.MkdirAll(opt.OutputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating output dir: %w", err)
	}

	units := make([]WorkUnit, len(clusters))
	byName := make(map[string]Cluster, len(clusters))
	for i, cl := range clusters {
		units[i] = cl.WorkUnit
		byName[cl.Name] = cl
	}

	var mu sync.Mutex
	reports := make(map[string]WriteReport, len(clusters))

	worker := func(ctx context.Context, u WorkUnit) (*PointBatch, error) {
		cl := byName[u.Name]
		batch := &PointBatch{}
		if len(u.Tiles) > 0 {
			flt := u.Extra
			flt.Shape = u.Geometry
			flt.Buffer = u.Buffer
			var err error
			if batch, err = c.store.Read(ctx, u.Paths(), flt); err != nil {
				return nil, err
			}
		}
		rep, err := c.store.Write(ctx, cl.OutputPath(opt.OutputDir), batch)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		reports[u.Name] = rep
		mu.Unlock()
		return nil, nil
	}

	results := c.dispatcher.Run(ctx, units, worker, opt.PoolSize)
	if _, err := removeEmptyOutputs(opt.OutputDir, clusters, reports); err != nil {
		return nil, nil, err
	}

	out, err := Open(ctx, opt.OutputDir, c.store, WithLogger(c.log))
	if err != nil {
		return nil, nil, fmt.Errorf("opening re-tiled catalog: %w", err)
	}
	return out, OrderResults(units, results), nil
}
