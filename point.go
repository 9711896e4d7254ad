package waveline

import "math"

// Point is a single sample in data space.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Series is an ordered sequence of points plus presentation metadata.
//
// A Series is owned by the caller. The rendering core reads Points while
// packing an update and never modifies them.
type Series struct {
	// ID identifies the series across updates.
	ID string

	// Points are the samples in ascending X order.
	Points []Point

	// Color is the RGB line color with components in [0, 1].
	Color [3]float32

	// Label is an optional display name.
	Label string
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.Points) }

// Sanitize returns points with every non-finite sample removed.
//
// When all points are finite the input slice is returned as is. Otherwise a
// new slice is allocated; the input is never modified.
func Sanitize(points []Point) []Point {
	first := -1
	for i, p := range points {
		if !p.IsFinite() {
			first = i
			break
		}
	}
	if first < 0 {
		return points
	}

	out := make([]Point, first, len(points)-1)
	copy(out, points[:first])
	for _, p := range points[first+1:] {
		if p.IsFinite() {
			out = append(out, p)
		}
	}
	return out
}
