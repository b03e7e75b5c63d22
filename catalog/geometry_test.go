package catalog

import "testing"

func TestBoundsOverlapsIsStrict(t *testing.T) {
	a := Bounds{XMin: 0, XMax: 100, YMin: 0, YMax: 100}
	testCases := []struct {
		name string
		b    Bounds
		want bool
	}{
		{name: "proper overlap", b: Bounds{XMin: 50, XMax: 150, YMin: 50, YMax: 150}, want: true},
		{name: "contained", b: Bounds{XMin: 10, XMax: 20, YMin: 10, YMax: 20}, want: true},
		{name: "touching right edge", b: Bounds{XMin: 100, XMax: 200, YMin: 0, YMax: 100}, want: false},
		{name: "touching corner", b: Bounds{XMin: 100, XMax: 200, YMin: 100, YMax: 200}, want: false},
		{name: "disjoint", b: Bounds{XMin: 300, XMax: 400, YMin: 0, YMax: 100}, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Overlaps(tc.b); got != tc.want {
				t.Errorf("Overlaps(%s) = %v, want %v", tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(a); got != tc.want {
				t.Errorf("Overlaps is not symmetric for %s", tc.b)
			}
		})
	}
}

func TestGeometryBoundsWithBuffer(t *testing.T) {
	c := Circle{X: 10, Y: 20, R: 5}
	if got, want := c.Bounds(3), (Bounds{XMin: 2, XMax: 18, YMin: 12, YMax: 28}); got != want {
		t.Errorf("circle bounds: got %s, want %s", got, want)
	}
	r := Rectangle{X: 0, Y: 0, HalfW: 10, HalfH: 5}
	if got, want := r.Bounds(2), (Bounds{XMin: -12, XMax: 12, YMin: -7, YMax: 7}); got != want {
		t.Errorf("rectangle bounds: got %s, want %s", got, want)
	}
}

func TestFilterKeep(t *testing.T) {
	zmin, zmax := 2.0, 10.0
	flt := Filter{
		Shape:           Circle{X: 0, Y: 0, R: 10},
		ZMin:            &zmin,
		ZMax:            &zmax,
		Classifications: []uint8{2, 5},
	}

	testCases := []struct {
		name    string
		x, y, z float64
		class   uint8
		want    bool
	}{
		{name: "passes all clauses", x: 1, y: 1, z: 5, class: 2, want: true},
		{name: "outside shape", x: 20, y: 0, z: 5, class: 2, want: false},
		{name: "below zmin", x: 1, y: 1, z: 1, class: 2, want: false},
		{name: "above zmax", x: 1, y: 1, z: 11, class: 5, want: false},
		{name: "wrong class", x: 1, y: 1, z: 5, class: 1, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := flt.Keep(tc.x, tc.y, tc.z, tc.class); got != tc.want {
				t.Errorf("Keep(%g, %g, %g, %d) = %v, want %v", tc.x, tc.y, tc.z, tc.class, got, tc.want)
			}
		})
	}

	empty := Filter{}
	if !empty.Keep(1e9, -1e9, 0, 0) {
		t.Error("the empty filter must keep everything")
	}
}
