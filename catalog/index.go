package catalog

// TileRecord describes one physical tile file of the catalog: its path and
// the bounding box its header declares. Records are built once when the
// catalog is opened and never mutated.
type TileRecord struct {
	Path   string
	Bounds Bounds
}

// TileIndex answers "which tiles intersect this geometry" queries against
// the catalog's per-tile bounding boxes. It is immutable after construction
// and safe for concurrent use by any number of workers.
type TileIndex struct {
	tiles []TileRecord
}

// NewTileIndex validates the tile records and builds an index over them.
// Construction fails with an IndexError when two records share a path or a
// bounding box is degenerate (min >= max on either axis).
func NewTileIndex(tiles []TileRecord) (*TileIndex, error) {
	seen := make(map[string]struct{}, len(tiles))
	for _, t := range tiles {
		if _, dup := seen[t.Path]; dup {
			return nil, indexErrorf("duplicate tile path %s", t.Path)
		}
		seen[t.Path] = struct{}{}
		if t.Bounds.XMin >= t.Bounds.XMax || t.Bounds.YMin >= t.Bounds.YMax {
			return nil, indexErrorf("degenerate bounding box %s for tile %s", t.Bounds, t.Path)
		}
	}
	idx := &TileIndex{tiles: make([]TileRecord, len(tiles))}
	copy(idx.tiles, tiles)
	return idx, nil
}

// Len returns the number of indexed tiles.
func (ix *TileIndex) Len() int { return len(ix.tiles) }

// Tiles returns the indexed records in input order. The returned slice is a
// copy; the index itself stays immutable.
func (ix *TileIndex) Tiles() []TileRecord {
	out := make([]TileRecord, len(ix.tiles))
	copy(out, ix.tiles)
	return out
}

// Extent returns the union of every tile's bounding box. The second return
// is false for an empty index.
func (ix *TileIndex) Extent() (Bounds, bool) {
	if len(ix.tiles) == 0 {
		return Bounds{}, false
	}
	ext := ix.tiles[0].Bounds
	for _, t := range ix.tiles[1:] {
		ext = ext.Union(t.Bounds)
	}
	return ext, true
}

// Intersecting returns the tiles whose bounding box overlaps the geometry
// grown by buffer, in stable input order. A geometry that only touches a
// tile edge does not select that tile. The result is empty, never nil and
// never an error, when nothing intersects.
func (ix *TileIndex) Intersecting(g Geometry, buffer float64) []TileRecord {
	query := g.Bounds(buffer)
	out := make([]TileRecord, 0, 4)
	for _, t := range ix.tiles {
		if t.Bounds.Overlaps(query) {
			out = append(out, t)
		}
	}
	return out
}
