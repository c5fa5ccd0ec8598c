package vectormath

import (
	"math"
	"sort"
)

// Compressed is the outcome of a lossy vector transform. Quality is the
// cosine similarity between the original and transformed vector, in [0, 1]
// for any vector a transform can produce from its own input.
type Compressed struct {
	Vector  []float32
	Quality float64
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 9 {
		return 9
	}
	return level
}

// Quantize maps every component onto a grid of 2^(8-level) buckets spanning
// the vector's own min/max range. Higher levels mean fewer buckets and more
// loss.
func Quantize(v []float32, level int) Compressed {
	if len(v) == 0 {
		return Compressed{Vector: v, Quality: 1}
	}
	level = clampLevel(level)
	buckets := 1
	if level < 8 {
		buckets = 1 << (8 - level)
	}
	// The grid needs at least two points to span [lo, hi].
	if buckets < 2 {
		buckets = 2
	}

	lo, hi := v[0], v[0]
	for _, f := range v[1:] {
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if hi == lo {
		// Flat vector quantizes to itself.
		out := make([]float32, len(v))
		copy(out, v)
		return Compressed{Vector: out, Quality: quality(v, out)}
	}

	step := (hi - lo) / float32(buckets-1)
	out := make([]float32, len(v))
	for i, f := range v {
		b := math.Round(float64((f - lo) / step))
		out[i] = lo + float32(b)*step
	}
	return Compressed{Vector: out, Quality: quality(v, out)}
}

// Reduce keeps the N*(1-level/10) highest-magnitude dimensions and zeroes
// the rest, preserving the vector's length.
func Reduce(v []float32, level int) Compressed {
	if len(v) == 0 {
		return Compressed{Vector: v, Quality: 1}
	}
	level = clampLevel(level)

	keep := int(float64(len(v)) * (1 - float64(level)/10))
	if keep < 1 {
		keep = 1
	}

	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return math.Abs(float64(v[idx[a]])) > math.Abs(float64(v[idx[b]]))
	})

	out := make([]float32, len(v))
	for _, i := range idx[:keep] {
		out[i] = v[i]
	}
	return Compressed{Vector: out, Quality: quality(v, out)}
}

// Hybrid reduces at half the level, then quantizes the reduced vector at the
// full level. Quality is measured against the original input.
func Hybrid(v []float32, level int) Compressed {
	level = clampLevel(level)
	half := level / 2
	if half < 1 {
		half = 1
	}

	reduced := Reduce(v, half)
	quantized := Quantize(reduced.Vector, level)
	return Compressed{Vector: quantized.Vector, Quality: quality(v, quantized.Vector)}
}

// quality clamps cosine similarity into [0, 1].
func quality(original, transformed []float32) float64 {
	c := Cosine(original, transformed)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
