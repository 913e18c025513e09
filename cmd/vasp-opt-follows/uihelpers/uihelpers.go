// Package uihelpers holds display-free chart math shared by the viewer's
// renderers, kept out of the main package so it can be tested without a
// window.
package uihelpers

import (
	"math"
	"strconv"
)

// ComputeChartDimensions applies the width/height clamp rules used for
// charts. Input: desired raw width (e.g. canvas width). Returns clamped
// width and height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 800 {
		w = 800
	}
	h := int(float32(w) * 0.33)
	if h < 280 {
		h = 280
	}
	if h > 520 {
		h = 520
	}
	return w, h
}

// NiceBounds expands [min,max] by a small margin and rounds both ends to
// "nice" numbers based on the span's order of magnitude.
func NiceBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	if pad <= 0 {
		pad = 1
	}
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

// BuildNumericTicks generates up to n tick positions spanning [min,max]
// using the 1, 2, 2.5, 5, 10 step ladder.
func BuildNumericTicks(min, max float64, n int) []float64 {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	candidates := []float64{1, 2, 2.5, 5, 10}
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range candidates {
		step := c * mag
		count := math.Ceil(span/step) + 1
		if count < 2 {
			count = 2
		}
		diff := math.Abs(count - float64(n))
		if diff < bestScore {
			bestScore = diff
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	var out []float64
	for v := start; v <= end+bestStep*0.5; v += bestStep {
		out = append(out, round6(v))
		if len(out) > n+2 {
			break
		}
	}
	if len(out) < 2 {
		out = []float64{min, max}
	}
	return out
}

// BuildStepTicks returns integer tick positions for a 0..lastStep x-axis,
// thinned so long runs do not label every step.
func BuildStepTicks(lastStep, n int) []float64 {
	if lastStep < 1 {
		return []float64{0, 1}
	}
	stride := 1
	for (lastStep/stride)+1 > n {
		stride *= 2
		if stride > lastStep {
			break
		}
	}
	var out []float64
	for v := 0; v <= lastStep; v += stride {
		out = append(out, float64(v))
	}
	if out[len(out)-1] != float64(lastStep) {
		out = append(out, float64(lastStep))
	}
	return out
}

// FormatNumericTick provides a compact axis label.
func FormatNumericTick(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 100:
		return strconv.FormatInt(int64(math.Round(v)), 10)
	case av >= 10:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case av >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case av >= 0.01:
		return strconv.FormatFloat(v, 'f', 3, 64)
	case av == 0:
		return "0"
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}

// round6 rounds to 6 decimal places to stabilize labels and comparisons.
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
