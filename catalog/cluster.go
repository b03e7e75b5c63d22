package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cluster is the re-tiling variant of a work unit: one planned output tile,
// with a deterministic name and the file extension of its output.
type Cluster struct {
	WorkUnit
	Extension string
}

// OutputPath returns the cluster's destination file under dir.
func (c Cluster) OutputPath(dir string) string {
	return filepath.Join(dir, c.Name+c.Extension)
}

// RetileOptions configures a re-tiling run.
type RetileOptions struct {
	// OutputDir receives the new catalog's tiles. It must not already
	// contain matching point-cloud files.
	OutputDir string

	// TilingSize is the edge length of the output grid cells. Zero selects
	// by-file mode: one cluster per source tile.
	TilingSize float64

	// Buffer pads every cluster's extraction window.
	Buffer float64

	// Prefix is prepended to sequential cluster names. In by-file mode a
	// non-empty prefix switches naming from source base names to
	// prefix+sequence.
	Prefix string

	// PoolSize bounds the write worker pool.
	PoolSize int
}

// clusterName formats a sequential cluster name, zero-padded wide enough for
// the total cluster count (minimum width 5).
func clusterName(prefix string, i, total int) string {
	width := len(fmt.Sprint(total))
	if width < 5 {
		width = 5
	}
	return fmt.Sprintf("%s%0*d", prefix, width, i)
}

// PlanClustersByFile plans one cluster per source tile, each covering the
// tile's own bounding box. Names come from the source file base names unless
// a prefix is given or base names collide, in which case sequential
// zero-padded names are used instead.
func PlanClustersByFile(ix *TileIndex, opt RetileOptions, ext string) ([]Cluster, error) {
	if opt.Buffer < 0 {
		return nil, validationf("negative buffer %g", opt.Buffer)
	}
	tiles := ix.Tiles()
	sequential := opt.Prefix != ""
	if !sequential {
		seen := make(map[string]struct{}, len(tiles))
		for _, t := range tiles {
			base := strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
			if _, dup := seen[base]; dup {
				sequential = true
				break
			}
			seen[base] = struct{}{}
		}
	}
	clusters := make([]Cluster, len(tiles))
	for i, t := range tiles {
		name := strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
		if sequential {
			name = clusterName(opt.Prefix, i+1, len(tiles))
		}
		g := RectangleFromBounds(t.Bounds)
		clusters[i] = Cluster{
			WorkUnit: WorkUnit{
				Name:     name,
				Geometry: g,
				Buffer:   opt.Buffer,
				Tiles:    ix.Intersecting(g, opt.Buffer),
			},
			Extension: ext,
		}
	}
	return clusters, nil
}

// PlanClustersGrid partitions the catalog extent into a regular grid of
// square cells of the configured tiling size, anchored at the extent's lower
// left corner. Every cell is emitted, including cells whose tile list came
// back empty, so the grid stays complete; empty cells simply produce no
// output downstream.
func PlanClustersGrid(ix *TileIndex, opt RetileOptions, ext string) ([]Cluster, error) {
	if opt.TilingSize <= 0 {
		return nil, validationf("tiling size %g must be positive", opt.TilingSize)
	}
	if opt.Buffer < 0 {
		return nil, validationf("negative buffer %g", opt.Buffer)
	}
	extent, ok := ix.Extent()
	if !ok {
		return []Cluster{}, nil
	}
	cols := int((extent.Width() + opt.TilingSize - 1e-9) / opt.TilingSize)
	rows := int((extent.Height() + opt.TilingSize - 1e-9) / opt.TilingSize)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	clusters := make([]Cluster, 0, cols*rows)
	total := cols * rows
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := Bounds{
				XMin: extent.XMin + float64(col)*opt.TilingSize,
				YMin: extent.YMin + float64(row)*opt.TilingSize,
			}
			cell.XMax = cell.XMin + opt.TilingSize
			cell.YMax = cell.YMin + opt.TilingSize
			g := RectangleFromBounds(cell)
			clusters = append(clusters, Cluster{
				WorkUnit: WorkUnit{
					Name:     clusterName(opt.Prefix, len(clusters)+1, total),
					Geometry: g,
					Buffer:   opt.Buffer,
					Tiles:    ix.Intersecting(g, opt.Buffer),
				},
				Extension: ext,
			})
		}
	}
	return clusters, nil
}

// checkDestination fails with a ConflictError when dir already holds files
// with the output extension. It runs before any write so a conflict leaves
// no side effects.
func checkDestination(dir, ext string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return fmt.Errorf("scanning destination %s: %w", dir, err)
	}
	if len(matches) > 0 {
		return &ConflictError{Dir: dir, Files: matches}
	}
	return nil
}

// removeEmptyOutputs deletes output files whose write report counted zero
// points and strips them from the result map. Grid cells that fall off the
// catalog produce such files; deleting them keeps the new catalog free of
// empty tiles. Returns the surviving reports keyed by cluster name.
func removeEmptyOutputs(dir string, clusters []Cluster, reports map[string]WriteReport) (map[string]WriteReport, error) {
	kept := make(map[string]WriteReport, len(reports))
	for _, c := range clusters {
		rep, ok := reports[c.Name]
		if !ok {
			continue
		}
		if rep.PointCount == 0 {
			if err := os.Remove(rep.Path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing empty output %s: %w", rep.Path, err)
			}
			continue
		}
		kept[c.Name] = rep
	}
	return kept, nil
}
