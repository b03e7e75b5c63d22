package catalog

import "testing"

func TestClassifyBufferCircle(t *testing.T) {
	shape := Circle{X: 0, Y: 0, R: 10}

	// Points on the X axis, so distance from the center equals X.
	testCases := []struct {
		name string
		dist float64
		want ZoneCode
	}{
		{name: "well inside the core", dist: 7.5, want: ZoneNone},
		{name: "inside the edge ring", dist: 8.5, want: ZoneCircleEdge},
		{name: "exactly on the core boundary", dist: 8.0, want: ZoneNone},
		{name: "at the rim", dist: 10.0, want: ZoneCircleEdge},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			codes := ClassifyBuffer([]Point{{X: tc.dist}}, shape, 2)
			if codes[0] != tc.want {
				t.Errorf("distance %g: got code %d, want %d", tc.dist, codes[0], tc.want)
			}
		})
	}
}

func TestClassifyBufferWholeDisc(t *testing.T) {
	// buffer >= r marks every point as edge, including a point exactly at
	// the center (distance zero).
	shape := Circle{X: 0, Y: 0, R: 5}
	points := []Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 4, Y: 0}}
	for _, buffer := range []float64{5, 6} {
		for i, code := range ClassifyBuffer(points, shape, buffer) {
			if code != ZoneCircleEdge {
				t.Errorf("buffer %g, point %d: got code %d, want ZoneCircleEdge", buffer, i, code)
			}
		}
	}
}

func TestClassifyBufferRectangle(t *testing.T) {
	// The unit square [0,100]x[0,100] with a 10-wide buffer.
	shape := Rectangle{X: 50, Y: 50, HalfW: 50, HalfH: 50}

	testCases := []struct {
		name string
		x, y float64
		want ZoneCode
	}{
		{name: "core point", x: 50, y: 50, want: ZoneNone},
		{name: "left buffer", x: 5, y: 50, want: ZoneLeft},
		{name: "top buffer", x: 50, y: 95, want: ZoneTop},
		{name: "bottom buffer", x: 50, y: 5, want: ZoneBottom},
		{name: "right buffer", x: 95, y: 50, want: ZoneRight},
		// Corner points keep the last matching side in BOTTOM, LEFT, TOP,
		// RIGHT order.
		{name: "top-left corner resolves to top", x: 5, y: 95, want: ZoneTop},
		{name: "bottom-left corner resolves to left", x: 5, y: 5, want: ZoneLeft},
		{name: "bottom-right corner resolves to right", x: 95, y: 5, want: ZoneRight},
		{name: "top-right corner resolves to right", x: 95, y: 95, want: ZoneRight},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			codes := ClassifyBuffer([]Point{{X: tc.x, Y: tc.y}}, shape, 10)
			if codes[0] != tc.want {
				t.Errorf("(%g, %g): got code %d, want %d", tc.x, tc.y, codes[0], tc.want)
			}
		})
	}
}

func TestClassifyBufferDoesNotMutate(t *testing.T) {
	points := []Point{{X: 1, Y: 2, Z: 3}, {X: 95, Y: 95, Z: 4}}
	before := make([]Point, len(points))
	copy(before, points)

	codes := ClassifyBuffer(points, Rectangle{X: 50, Y: 50, HalfW: 50, HalfH: 50}, 10)
	if len(codes) != len(points) {
		t.Fatalf("got %d codes for %d points", len(codes), len(points))
	}
	for i := range points {
		if points[i] != before[i] {
			t.Errorf("point %d was mutated: %+v != %+v", i, points[i], before[i])
		}
	}
}
