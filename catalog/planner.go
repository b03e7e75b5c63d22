package catalog

import "fmt"

// WorkUnit describes one independently dispatchable job: a geometry, its
// buffer, the source tiles that cover it, and a name used to key its result.
// Units are built per batch, consumed exactly once by the dispatcher, and
// never retained afterward.
type WorkUnit struct {
	Name     string
	Geometry Geometry
	Buffer   float64

	// Tiles lists the source tiles covering the geometry, in catalog order.
	// It may be empty for a unit that yields no data, but is never nil.
	Tiles []TileRecord

	// Extra is opaque pass-through for the worker, typically attribute
	// filter clauses forwarded to the reader.
	Extra Filter
}

// Paths returns the unit's tile paths in order.
func (u WorkUnit) Paths() []string {
	paths := make([]string, len(u.Tiles))
	for i, t := range u.Tiles {
		paths[i] = t.Path
	}
	return paths
}

// ROISet is a batch of region-of-interest requests, given as parallel
// arrays. R holds the circle radius (or rectangle half-width) per ROI; when
// R2 is present each ROI is a rectangle with half-height R2. Single-element
// R, R2, and Buffer arrays broadcast across every ROI.
type ROISet struct {
	X, Y   []float64
	R      []float64
	R2     []float64
	Buffer []float64
	Names  []string

	// Extra is forwarded unchanged into each planned unit.
	Extra Filter
}

// broadcast resolves a scalar-or-parallel array against n ROIs.
func broadcast(vals []float64, n int, what string) ([]float64, error) {
	switch len(vals) {
	case n:
		return vals, nil
	case 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	default:
		return nil, validationf("%s has length %d, want 1 or %d", what, len(vals), n)
	}
}

// PlanROIs turns a set of ROI requests into work units, resolving each
// geometry's tile list through the index. Validation failures abort before
// any tile is touched. ROIs whose resolved tile list is empty are dropped
// from the plan: querying past the catalog edge is a normal outcome, not an
// error. The returned unit order preserves the filtered ROI order, which is
// the order batch results are reported in.
func PlanROIs(ix *TileIndex, set ROISet) ([]WorkUnit, error) {
	n := len(set.X)
	if len(set.Y) != n {
		return nil, validationf("x and y have mismatched lengths %d and %d", n, len(set.Y))
	}
	if n == 0 {
		return []WorkUnit{}, nil
	}
	if len(set.R) == 0 {
		return nil, validationf("no radius supplied")
	}
	r, err := broadcast(set.R, n, "r")
	if err != nil {
		return nil, err
	}
	var r2 []float64
	if len(set.R2) > 0 {
		if r2, err = broadcast(set.R2, n, "r2"); err != nil {
			return nil, err
		}
	}
	buffer := make([]float64, n)
	if len(set.Buffer) > 0 {
		if buffer, err = broadcast(set.Buffer, n, "buffer"); err != nil {
			return nil, err
		}
	}
	for i, b := range buffer {
		if b < 0 {
			return nil, validationf("negative buffer %g for ROI %d", b, i+1)
		}
	}
	if len(set.Names) > 0 {
		if len(set.Names) != n {
			return nil, validationf("names has length %d, want %d", len(set.Names), n)
		}
		// Results are keyed by name, so duplicates would silently collapse
		// into one entry.
		seen := make(map[string]int, n)
		for i, name := range set.Names {
			if j, ok := seen[name]; ok {
				return nil, validationf("duplicate name %q for ROIs %d and %d", name, j+1, i+1)
			}
			seen[name] = i
		}
	}

	units := make([]WorkUnit, 0, n)
	for i := 0; i < n; i++ {
		var g Geometry
		if r2 != nil {
			g = Rectangle{X: set.X[i], Y: set.Y[i], HalfW: r[i], HalfH: r2[i]}
		} else {
			g = Circle{X: set.X[i], Y: set.Y[i], R: r[i]}
		}
		name := fmt.Sprintf("ROI%d", i+1)
		if len(set.Names) > 0 {
			name = set.Names[i]
		}
		tiles := ix.Intersecting(g, buffer[i])
		if len(tiles) == 0 {
			continue
		}
		units = append(units, WorkUnit{
			Name:     name,
			Geometry: g,
			Buffer:   buffer[i],
			Tiles:    tiles,
			Extra:    set.Extra,
		})
	}
	return units, nil
}
