package downsample

import "github.com/gogpu/waveline"

// MinMax downsamples points by splitting them into target equal-width
// buckets and keeping the minimum-y and maximum-y point of each bucket, in
// ascending x order. The result holds at most 2*target points.
func MinMax(points []waveline.Point, target int) []waveline.Point {
	if len(points) <= target {
		return points
	}
	return minMax(points, target)
}

func minMax(points []waveline.Point, target int) []waveline.Point {
	n := len(points)
	if target <= 0 {
		return []waveline.Point{}
	}

	size := float64(n) / float64(target)
	sampled := make([]waveline.Point, 0, 2*target)

	for i := 0; i < target; i++ {
		lo := int(float64(i) * size)
		hi := int(float64(i+1) * size)
		if i == target-1 {
			hi = n
		}
		if lo >= hi {
			continue
		}

		minIdx, maxIdx := lo, lo
		for j := lo + 1; j < hi; j++ {
			y := points[j].Y
			if y < points[minIdx].Y {
				minIdx = j
			}
			if y > points[maxIdx].Y {
				maxIdx = j
			}
		}

		lowest, highest := points[minIdx], points[maxIdx]
		switch {
		case minIdx == maxIdx:
			sampled = append(sampled, lowest)
		case lowest.X < highest.X:
			sampled = append(sampled, lowest, highest)
		default:
			sampled = append(sampled, highest, lowest)
		}
	}

	return sampled
}
