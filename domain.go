package waveline

import "math"

// Axis selects the X or Y coordinate of a Point.
type Axis int

const (
	// AxisX selects Point.X.
	AxisX Axis = iota
	// AxisY selects Point.Y.
	AxisY
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "unknown"
	}
}

func (a Axis) value(p Point) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

// Domain padding constants.
const (
	// DomainPaddingFraction is the fraction of the range added on each side
	// when padding is requested.
	DomainPaddingFraction = 0.05

	// DomainPaddingAbsolute is the padding added on each side when the
	// range has zero width.
	DomainPaddingAbsolute = 0.1
)

// DefaultRange is the domain returned for an empty point set.
var DefaultRange = [2]float64{0, 1}

// Domain is the data-space range mapped onto the plot area.
type Domain struct {
	X [2]float64
	Y [2]float64
}

// DefaultDomain returns the unit domain on both axes.
func DefaultDomain() Domain {
	return Domain{X: DefaultRange, Y: DefaultRange}
}

// Valid reports whether both axes are finite and ordered (min <= max).
func (d Domain) Valid() bool {
	return validRange(d.X) && validRange(d.Y)
}

func validRange(r [2]float64) bool {
	for _, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r[0] <= r[1]
}

// ComputeDomain returns the [min, max] extent of points along axis.
//
// An empty point set yields [0, 1]. Non-finite coordinates are ignored, and a
// set without any finite coordinate also yields [0, 1]. With padding, the
// range grows by 5% of its width on each side, or by 0.1 when min == max.
func ComputeDomain(points []Point, axis Axis, padding bool) [2]float64 {
	lo, hi := extent(points, axis, math.Inf(1), math.Inf(-1))
	if lo > hi {
		return DefaultRange
	}
	if padding {
		return padRange(lo, hi)
	}
	return [2]float64{lo, hi}
}

// extent widens [lo, hi] by the finite coordinates of points along axis.
func extent(points []Point, axis Axis, lo, hi float64) (float64, float64) {
	for _, p := range points {
		v := axis.value(p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func padRange(lo, hi float64) [2]float64 {
	pad := (hi - lo) * DomainPaddingFraction
	if hi == lo {
		pad = DomainPaddingAbsolute
	}
	return [2]float64{lo - pad, hi + pad}
}

// ComputeSeriesDomain returns the union domain of every series. Each axis
// falls back to [0, 1] when no series has a finite coordinate on it.
// Padding is applied once to the union, not per series.
func ComputeSeriesDomain(series []Series, padding bool) Domain {
	xlo, xhi := math.Inf(1), math.Inf(-1)
	ylo, yhi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		xlo, xhi = extent(s.Points, AxisX, xlo, xhi)
		ylo, yhi = extent(s.Points, AxisY, ylo, yhi)
	}
	return Domain{X: unionRange(xlo, xhi, padding), Y: unionRange(ylo, yhi, padding)}
}

func unionRange(lo, hi float64, padding bool) [2]float64 {
	switch {
	case lo > hi:
		return DefaultRange
	case padding:
		return padRange(lo, hi)
	default:
		return [2]float64{lo, hi}
	}
}

// LinearScale returns the affine mapping from domain onto rng.
//
// When domain has zero width every value maps to the midpoint of rng.
func LinearScale(domain, rng [2]float64) func(float64) float64 {
	span := domain[1] - domain[0]
	if span == 0 {
		mid := rng[0] + (rng[1]-rng[0])/2
		return func(float64) float64 { return mid }
	}
	k := (rng[1] - rng[0]) / span
	d0, r0 := domain[0], rng[0]
	return func(v float64) float64 {
		return r0 + (v-d0)*k
	}
}
