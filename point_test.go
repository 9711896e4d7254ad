package waveline

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSanitize(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name string
		in   []Point
		want []Point
	}{
		{"nil", nil, nil},
		{"all finite", []Point{{0, 1}, {1, 2}}, []Point{{0, 1}, {1, 2}}},
		{"leading NaN", []Point{{nan, 1}, {1, 2}}, []Point{{1, 2}}},
		{"middle Inf", []Point{{0, 1}, {1, inf}, {2, 3}}, []Point{{0, 1}, {2, 3}}},
		{"trailing -Inf", []Point{{0, 1}, {-inf, 0}}, []Point{{0, 1}}},
		{"all bad", []Point{{nan, nan}, {inf, 0}}, []Point{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Sanitize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeReturnsInputWhenClean(t *testing.T) {
	in := []Point{{0, 0}, {1, 1}, {2, 4}}
	got := Sanitize(in)
	if &got[0] != &in[0] {
		t.Error("Sanitize() copied a slice with no invalid points")
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	in := []Point{{0, 0}, {math.NaN(), 1}, {2, 2}}
	_ = Sanitize(in)
	if !math.IsNaN(in[1].X) || in[2] != (Point{2, 2}) {
		t.Errorf("Sanitize() modified its input: %v", in)
	}
}

func TestSeriesLen(t *testing.T) {
	s := Series{ID: "s", Points: make([]Point, 7)}
	if s.Len() != 7 {
		t.Errorf("Len() = %d, want 7", s.Len())
	}
}
