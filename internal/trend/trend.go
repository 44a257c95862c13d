// Package trend provides the categorical recent-vs-earlier comparison shared
// by the session performance analyzer and the repository metrics engine.
package trend

// DefaultThreshold is the relative change below which two windows are
// considered equivalent.
const DefaultThreshold = 0.10

// Compare classifies recent against earlier with the given relative
// threshold. It returns +1 when recent exceeds earlier by more than the
// threshold, -1 when it falls short by more than the threshold, and 0
// otherwise. A zero earlier window with a non-zero recent window counts as
// an increase; two zero windows are flat.
func Compare(recent, earlier, threshold float64) int {
	if earlier == 0 {
		if recent > 0 {
			return 1
		}
		return 0
	}
	switch {
	case recent > earlier*(1+threshold):
		return 1
	case recent < earlier*(1-threshold):
		return -1
	default:
		return 0
	}
}

// Label maps a Compare result onto caller-supplied category names.
func Label(cmp int, up, down, flat string) string {
	switch {
	case cmp > 0:
		return up
	case cmp < 0:
		return down
	default:
		return flat
	}
}

// Mean returns the arithmetic mean of vs, or 0 for an empty slice.
func Mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
