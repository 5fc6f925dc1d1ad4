package fusion

import (
	"math"
	"sort"
)

// Quartiles returns Q1 and Q3 using linear interpolation between closest
// ranks. values need not be sorted.
func Quartiles(values []float64) (q1, q3 float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantile(sorted, 0.25), quantile(sorted, 0.75)
}

func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// RemoveOutliers reports which values fall inside
// [Q1 - factor*IQR, Q3 + factor*IQR]. Fewer than three values are all kept.
func RemoveOutliers(values []float64, factor float64) []bool {
	keep := make([]bool, len(values))
	for i := range keep {
		keep[i] = true
	}
	if len(values) < 3 {
		return keep
	}
	q1, q3 := Quartiles(values)
	iqr := q3 - q1
	lower, upper := q1-factor*iqr, q3+factor*iqr
	for i, v := range values {
		keep[i] = v >= lower && v <= upper
	}
	return keep
}

// normalizedVariance is the squared coefficient of variation: population
// variance over the squared mean. It is 0 for identical values.
func normalizedVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(values)) / (mean * mean)
}

// noisyOr combines independent confidences: 1 - prod(1 - c).
func noisyOr(confs []float64) float64 {
	miss := 1.0
	for _, c := range confs {
		miss *= 1 - clamp01(c)
	}
	return 1 - miss
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
