package catalog

import (
	"fmt"
	"math"
)

// Bounds is an axis-aligned bounding box in the catalog's planar coordinate
// system.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g] x [%g, %g]", b.XMin, b.XMax, b.YMin, b.YMax)
}

// Width returns the extent of the box along the X axis.
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns the extent of the box along the Y axis.
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// Expand returns the box grown by pad on every side.
func (b Bounds) Expand(pad float64) Bounds {
	return Bounds{XMin: b.XMin - pad, XMax: b.XMax + pad, YMin: b.YMin - pad, YMax: b.YMax + pad}
}

// Overlaps reports whether the two boxes share interior area. Boxes that
// merely touch along an edge do not overlap; the comparison is strict so a
// query aligned with a tile boundary does not pull in the neighbor tile.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.XMin < o.XMax && b.XMax > o.XMin && b.YMin < o.YMax && b.YMax > o.YMin
}

// Union returns the smallest box covering both boxes.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		XMin: math.Min(b.XMin, o.XMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMin: math.Min(b.YMin, o.YMin),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

// Geometry is a query shape. Bounds reports the shape's bounding box grown
// by an extraction buffer; Contains tests point membership with the same
// buffer applied.
type Geometry interface {
	Bounds(buffer float64) Bounds
	Contains(x, y, buffer float64) bool
	String() string
}

// Circle is a disc centered at (X, Y) with radius R.
type Circle struct {
	X, Y float64
	R    float64
}

func (c Circle) Bounds(buffer float64) Bounds {
	r := c.R + buffer
	return Bounds{XMin: c.X - r, XMax: c.X + r, YMin: c.Y - r, YMax: c.Y + r}
}

func (c Circle) Contains(x, y, buffer float64) bool {
	r := c.R + buffer
	dx, dy := x-c.X, y-c.Y
	return dx*dx+dy*dy <= r*r
}

func (c Circle) String() string {
	return fmt.Sprintf("circle(%g, %g, r=%g)", c.X, c.Y, c.R)
}

// Rectangle is an axis-aligned rectangle centered at (X, Y) with half-extents
// HalfW and HalfH.
type Rectangle struct {
	X, Y  float64
	HalfW float64
	HalfH float64
}

// RectangleFromBounds builds the rectangle covering b.
func RectangleFromBounds(b Bounds) Rectangle {
	return Rectangle{
		X:     (b.XMin + b.XMax) / 2,
		Y:     (b.YMin + b.YMax) / 2,
		HalfW: b.Width() / 2,
		HalfH: b.Height() / 2,
	}
}

func (r Rectangle) Bounds(buffer float64) Bounds {
	return Bounds{
		XMin: r.X - r.HalfW - buffer,
		XMax: r.X + r.HalfW + buffer,
		YMin: r.Y - r.HalfH - buffer,
		YMax: r.Y + r.HalfH + buffer,
	}
}

func (r Rectangle) Contains(x, y, buffer float64) bool {
	return math.Abs(x-r.X) <= r.HalfW+buffer && math.Abs(y-r.Y) <= r.HalfH+buffer
}

func (r Rectangle) String() string {
	return fmt.Sprintf("rectangle(%g, %g, %gx%g)", r.X, r.Y, 2*r.HalfW, 2*r.HalfH)
}

// Filter is the structured predicate handed to the point-cloud reader. It
// replaces a textual filter expression with typed data: the shape clause plus
// optional attribute clauses the reader applies while loading.
type Filter struct {
	// Shape restricts points to a geometry; nil loads every point.
	Shape Geometry

	// Buffer widens Shape for extraction so the edge margin around the
	// region of interest comes along with it.
	Buffer float64

	// ZMin and ZMax, when set, keep only points inside the elevation range.
	ZMin *float64
	ZMax *float64

	// Classifications, when non-empty, keeps only points whose
	// classification code is listed.
	Classifications []uint8
}

// Keep reports whether a point passes every clause of the filter.
func (f Filter) Keep(x, y, z float64, class uint8) bool {
	if f.Shape != nil && !f.Shape.Contains(x, y, f.Buffer) {
		return false
	}
	if f.ZMin != nil && z < *f.ZMin {
		return false
	}
	if f.ZMax != nil && z > *f.ZMax {
		return false
	}
	if len(f.Classifications) > 0 {
		ok := false
		for _, c := range f.Classifications {
			if c == class {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
