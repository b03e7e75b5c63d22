package catalog

import "context"

// Point is a single point record loaded from a tile file.
type Point struct {
	X, Y, Z        float64
	Intensity      uint16
	Classification uint8
}

// PointBatch is the data extracted for one work unit: an ordered sequence of
// points and, when the unit carried a buffer, a parallel buffer-zone code per
// point. The batch belongs to the caller once returned and is never shared
// between units.
type PointBatch struct {
	Points []Point
	Zones  []ZoneCode
}

// Len returns the number of points in the batch.
func (b *PointBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Points)
}

// TileHeader is the metadata a point-cloud store reports for one tile file
// without loading its points.
type TileHeader struct {
	PointCount uint64
	Bounds     Bounds
}

// WriteReport summarizes one written output tile.
type WriteReport struct {
	Path       string
	PointCount uint64
}

// Reader loads the points of one or more tile files, applying the filter
// while reading. Implementations parse the binary tile format; the catalog
// core never does.
type Reader interface {
	Read(ctx context.Context, paths []string, flt Filter) (*PointBatch, error)
}

// Writer persists a batch as one tile file.
type Writer interface {
	Write(ctx context.Context, path string, batch *PointBatch) (WriteReport, error)
}

// Store is the full point-cloud file collaborator: read, write, header
// inspection, and the file extension its tiles carry.
type Store interface {
	Reader
	Writer
	Header(path string) (TileHeader, error)
	Extension() string
}
