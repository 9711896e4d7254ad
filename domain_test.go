package waveline

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestComputeDomain(t *testing.T) {
	pts := []Point{{0, 5}, {2, -1}, {10, 3}}

	tests := []struct {
		name    string
		points  []Point
		axis    Axis
		padding bool
		want    [2]float64
	}{
		{"empty x", nil, AxisX, false, [2]float64{0, 1}},
		{"empty y padded", nil, AxisY, true, [2]float64{0, 1}},
		{"x", pts, AxisX, false, [2]float64{0, 10}},
		{"y", pts, AxisY, false, [2]float64{-1, 5}},
		{"x padded", pts, AxisX, true, [2]float64{-0.5, 10.5}},
		{"y padded", pts, AxisY, true, [2]float64{-1.3, 5.3}},
		{"single point", []Point{{4, 4}}, AxisX, false, [2]float64{4, 4}},
		{"single point padded", []Point{{4, 4}}, AxisX, true, [2]float64{3.9, 4.1}},
		{"skips NaN", []Point{{math.NaN(), 0}, {1, 0}, {3, 0}}, AxisX, false, [2]float64{1, 3}},
		{"all NaN", []Point{{math.NaN(), 0}}, AxisX, true, [2]float64{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDomain(tt.points, tt.axis, tt.padding)
			if math.Abs(got[0]-tt.want[0]) > 1e-9 || math.Abs(got[1]-tt.want[1]) > 1e-9 {
				t.Errorf("ComputeDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeDomainPaddingContainsExtrema(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{
				X: rapid.Float64Range(-1e6, 1e6).Draw(t, "x"),
				Y: rapid.Float64Range(-1e6, 1e6).Draw(t, "y"),
			}
		}
		for _, axis := range []Axis{AxisX, AxisY} {
			raw := ComputeDomain(pts, axis, false)
			padded := ComputeDomain(pts, axis, true)
			if padded[0] > raw[0] || padded[1] < raw[1] {
				t.Fatalf("%v: padded %v does not contain %v", axis, padded, raw)
			}
			if padded[0] >= padded[1] {
				t.Fatalf("%v: padded domain %v has no width", axis, padded)
			}
		}
	})
}

func TestComputeSeriesDomain(t *testing.T) {
	series := []Series{
		{ID: "a", Points: []Point{{0, 0}, {5, 2}}},
		{ID: "empty"},
		{ID: "b", Points: []Point{{-5, 10}, {1, -2}}},
	}
	got := ComputeSeriesDomain(series, false)
	want := Domain{X: [2]float64{-5, 5}, Y: [2]float64{-2, 10}}
	if got != want {
		t.Errorf("ComputeSeriesDomain() = %+v, want %+v", got, want)
	}

	if got := ComputeSeriesDomain(nil, true); got != DefaultDomain() {
		t.Errorf("ComputeSeriesDomain(nil) = %+v, want default", got)
	}

	padded := ComputeSeriesDomain(series, true)
	if math.Abs(padded.X[0]+5.5) > 1e-9 || math.Abs(padded.X[1]-5.5) > 1e-9 {
		t.Errorf("padded X = %v, want [-5.5 5.5]", padded.X)
	}
}

func TestComputeSeriesDomainIgnoresNonFiniteSeries(t *testing.T) {
	series := []Series{
		{ID: "nan", Points: []Point{{math.NaN(), math.NaN()}}},
		{ID: "a", Points: []Point{{10, 20}, {12, 25}}},
	}
	want := Domain{X: [2]float64{10, 12}, Y: [2]float64{20, 25}}
	if got := ComputeSeriesDomain(series, false); got != want {
		t.Errorf("ComputeSeriesDomain() = %+v, want %+v", got, want)
	}
}

func TestLinearScale(t *testing.T) {
	scale := LinearScale([2]float64{0, 10}, [2]float64{0, 100})
	for _, tc := range []struct{ in, want float64 }{
		{0, 0},
		{10, 100},
		{5, 50},
		{-1, -10},
	} {
		if got := scale(tc.in); got != tc.want {
			t.Errorf("scale(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLinearScaleInverted(t *testing.T) {
	// Screen Y grows downward.
	scale := LinearScale([2]float64{0, 1}, [2]float64{600, 0})
	if got := scale(0.25); got != 450 {
		t.Errorf("scale(0.25) = %v, want 450", got)
	}
}

func TestLinearScaleZeroWidthDomain(t *testing.T) {
	scale := LinearScale([2]float64{3, 3}, [2]float64{0, 100})
	for _, v := range []float64{3, -1e9, 1e9} {
		got := scale(v)
		if got != 50 {
			t.Errorf("scale(%v) = %v, want 50", v, got)
		}
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("scale(%v) is not finite", v)
		}
	}
}

func TestDomainValid(t *testing.T) {
	tests := []struct {
		d    Domain
		want bool
	}{
		{DefaultDomain(), true},
		{Domain{X: [2]float64{1, 1}, Y: [2]float64{0, 1}}, true},
		{Domain{X: [2]float64{2, 1}, Y: [2]float64{0, 1}}, false},
		{Domain{X: [2]float64{0, 1}, Y: [2]float64{0, math.Inf(1)}}, false},
		{Domain{X: [2]float64{math.NaN(), 1}, Y: [2]float64{0, 1}}, false},
	}
	for _, tt := range tests {
		if got := tt.d.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestAxisString(t *testing.T) {
	if AxisX.String() != "x" || AxisY.String() != "y" || Axis(7).String() != "unknown" {
		t.Errorf("unexpected axis names: %s %s %s", AxisX, AxisY, Axis(7))
	}
}
