// Package downsample reduces ordered point sequences to a bounded number of
// points while preserving their visual shape.
//
// Two algorithms are provided. LTTB (Largest-Triangle-Three-Buckets) returns
// exactly the requested number of points and favors trend and salient
// extrema. MinMax keeps the lowest and highest sample of every bucket, so it
// never loses a peak or a valley, at the cost of returning up to twice the
// requested number of points.
//
// Neither algorithm validates its input. Points with NaN or infinite
// coordinates produce unspecified (but non-panicking) output; filter them
// with waveline.Sanitize first.
package downsample

import (
	"errors"
	"fmt"

	"github.com/gogpu/waveline"
)

// Method selects the decimation algorithm: waveline.LTTB or
// waveline.MinMax.
type Method = waveline.Method

// ErrUnknownMethod is returned by ParseMethod for an unsupported name.
var ErrUnknownMethod = errors.New("downsample: unknown method")

// ParseMethod converts a method name to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case waveline.LTTB, waveline.MinMax:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Downsample reduces points to at most target points using method.
//
// If len(points) <= target, points is returned unchanged (not copied); the
// caller must not modify the result in that case. An empty or unknown method
// uses LTTB.
//
// With MinMax the result may hold up to 2*target points. Callers must not
// assume the output length equals target for that method.
func Downsample(points []waveline.Point, target int, method Method) []waveline.Point {
	if len(points) <= target {
		return points
	}
	if method == waveline.MinMax {
		return minMax(points, target)
	}
	return lttb(points, target)
}

// OutputBound returns the maximum number of points Downsample can return
// for an input of n points.
func OutputBound(n, target int, method Method) int {
	if n <= target {
		return n
	}
	if method == waveline.MinMax {
		return max(0, 2*target)
	}
	if target < 3 {
		return min(n, 2)
	}
	return target
}
