package downsample

import (
	"math"

	"github.com/gogpu/waveline"
)

// LTTB downsamples points to exactly target points with the
// Largest-Triangle-Three-Buckets algorithm described in:
// https://skemman.is/bitstream/1946/15343/3/SS_MSthesis.pdf
//
// The first and last points are always kept. A target below 3 yields just
// the first and last points.
func LTTB(points []waveline.Point, target int) []waveline.Point {
	if len(points) <= target {
		return points
	}
	return lttb(points, target)
}

func lttb(points []waveline.Point, target int) []waveline.Point {
	n := len(points)
	if n < 2 {
		return points
	}
	if target < 3 {
		return []waveline.Point{points[0], points[n-1]}
	}

	// Bucket size. Leave room for start and end data points.
	every := float64(n-2) / float64(target-2)

	sampled := make([]waveline.Point, 0, target)
	sampled = append(sampled, points[0])

	a := 0
	for i := 0; i < target-2; i++ {
		lo := int(float64(i)*every) + 1
		hi := min(int(float64(i+1)*every)+1, n-1)

		nextHi := min(int(float64(i+2)*every)+1, n)
		c := centroid(points[min(hi, nextHi):nextHi], points[n-1])

		a = largestTriangle(points, points[a], c, lo, max(hi, lo+1))
		sampled = append(sampled, points[a])
	}

	return append(sampled, points[n-1])
}

// centroid returns the mean of bucket, or fallback if bucket is empty.
func centroid(bucket []waveline.Point, fallback waveline.Point) waveline.Point {
	if len(bucket) == 0 {
		return fallback
	}
	var c waveline.Point
	for _, p := range bucket {
		c.X += p.X
		c.Y += p.Y
	}
	length := float64(len(bucket))
	c.X /= length
	c.Y /= length
	return c
}

// largestTriangle returns the index in [lo, hi) of the point forming the
// largest triangle with a and c. Ties keep the earliest index.
func largestTriangle(points []waveline.Point, a, c waveline.Point, lo, hi int) int {
	index := lo
	maxArea := -1.0
	for j := lo; j < hi; j++ {
		p := points[j]
		area := math.Abs((a.X-c.X)*(p.Y-a.Y)-(a.X-p.X)*(c.Y-a.Y)) * 0.5
		if area > maxArea {
			maxArea, index = area, j
		}
	}
	return index
}
