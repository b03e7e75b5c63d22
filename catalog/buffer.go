package catalog

import "math"

// ZoneCode tags a point by the buffer zone it falls in, so downstream
// algorithms can exclude or specially treat edge-affected points.
type ZoneCode uint8

const (
	// ZoneNone marks a point inside the core region.
	ZoneNone ZoneCode = 0

	// ZoneCircleEdge marks a point in the edge ring of a circular region.
	ZoneCircleEdge ZoneCode = 1

	// Rectangle buffer sides. The codes are positional, not combined: a
	// corner point that sits in two side buffers keeps only the code of the
	// last side evaluated (BOTTOM, LEFT, TOP, RIGHT order).
	ZoneBottom ZoneCode = 1
	ZoneLeft   ZoneCode = 2
	ZoneTop    ZoneCode = 3
	ZoneRight  ZoneCode = 4
)

// ClassifyBuffer computes a buffer-zone code per point for the given
// geometry and buffer width. The input points are never mutated; the result
// is a fresh slice of the same length.
//
// For a circle of radius r, a point strictly farther than r-buffer from the
// center is ZoneCircleEdge; buffer >= r therefore marks the whole disc.
//
// For a rectangle the four half-plane tests run in the fixed order BOTTOM,
// LEFT, TOP, RIGHT against the edges moved inward by the buffer, and the
// last matching test wins. Corner points end up with a single side code.
func ClassifyBuffer(points []Point, g Geometry, buffer float64) []ZoneCode {
	codes := make([]ZoneCode, len(points))
	switch shape := g.(type) {
	case Circle:
		core := shape.R - buffer
		for i, p := range points {
			// A non-positive core radius means the buffer swallows the
			// whole disc, center point included.
			if core <= 0 || math.Hypot(p.X-shape.X, p.Y-shape.Y) > core {
				codes[i] = ZoneCircleEdge
			}
		}
	case Rectangle:
		bottom := shape.Y - shape.HalfH + buffer
		left := shape.X - shape.HalfW + buffer
		top := shape.Y + shape.HalfH - buffer
		right := shape.X + shape.HalfW - buffer
		for i, p := range points {
			if p.Y < bottom {
				codes[i] = ZoneBottom
			}
			if p.X < left {
				codes[i] = ZoneLeft
			}
			if p.Y > top {
				codes[i] = ZoneTop
			}
			if p.X > right {
				codes[i] = ZoneRight
			}
		}
	}
	return codes
}
