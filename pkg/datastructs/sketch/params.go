package sketch

import "math"

const (
	// MaxDimension is the largest accepted width or depth.
	MaxDimension = math.MaxUint16

	// DefaultWidth and DefaultDepth size sketches that are created implicitly by
	// a first increment: roughly 0.1% error with 99.9% confidence.
	DefaultWidth = 2000
	DefaultDepth = 10
)

// PlanByDimensions validates an explicit width and depth.
func PlanByDimensions(width, depth int64) (w, d int, err error) {
	if width < 1 || width > MaxDimension {
		return 0, 0, paramErr(ParamWidth, "%d (valid range: 1-%d)", width, MaxDimension)
	}
	if depth < 1 || depth > MaxDimension {
		return 0, 0, paramErr(ParamDepth, "%d (valid range: 1-%d)", depth, MaxDimension)
	}
	return int(width), int(depth), nil
}

// PlanByErrorBound derives dimensions from a target error and failure probability.
//
// Width bounds the overestimate to about epsilon * totalCount:
//
//	w = ceil(2 / epsilon)
//
// Depth bounds the probability that the overestimate exceeds that to delta:
//
//	d = ceil(log(delta) / log(0.5))
//
// Both results must fit the same range PlanByDimensions accepts, so very small
// epsilon or delta (including zero) are rejected.
func PlanByErrorBound(epsilon, delta float64) (w, d int, err error) {
	if math.IsNaN(epsilon) || epsilon < 0 || epsilon >= 1 {
		return 0, 0, paramErr(ParamError, "%v (valid range: [0, 1))", epsilon)
	}
	if math.IsNaN(delta) || delta < 0 || delta >= 1 {
		return 0, 0, paramErr(ParamProbability, "%v (valid range: [0, 1))", delta)
	}

	width := math.Ceil(2 / epsilon)
	depth := math.Ceil(math.Log(delta) / math.Log(0.5))

	if math.IsInf(width, 0) || width > MaxDimension {
		return 0, 0, paramErr(ParamError, "%v needs width above %d", epsilon, MaxDimension)
	}
	if math.IsInf(depth, 0) || depth > MaxDimension {
		return 0, 0, paramErr(ParamProbability, "%v needs depth above %d", delta, MaxDimension)
	}

	return PlanByDimensions(int64(width), int64(depth))
}

// SizeOf returns the exact number of bytes a sketch of the given dimensions occupies.
func SizeOf(width, depth int) int {
	return signatureLen + headerSize + counterSize*width*depth + 2*coeffSize*depth
}
