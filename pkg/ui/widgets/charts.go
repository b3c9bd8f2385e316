// Package widgets renders channel windows as single-line terminal charts.
package widgets

import (
	"math"
	"strings"
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Spark8 draws values already scaled to [0, 1], sampled evenly to width cells.
func Spark8(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	if width > len(vals) {
		width = len(vals)
	}
	step := float64(len(vals)) / float64(width)
	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := int(math.Min(float64(len(vals)-1), math.Floor(float64(i)*step)))
		v := clamp01(vals[idx])
		level := int(math.Round(v * float64(len(blocks)-1)))
		if level < 0 {
			level = 0
		}
		if level > len(blocks)-1 {
			level = len(blocks) - 1
		}
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// Trend scales a raw window to its own range and draws it.  A flat window is drawn at mid
// height.
func Trend(vals []float64, width int) string {
	return Spark8(Normalize(vals), width)
}

// Normalize maps values onto [0, 1] by their min and max.  Non-finite values map to 0.
func Normalize(vals []float64) []float64 {
	out := make([]float64, len(vals))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i, v := range vals {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			out[i] = 0
		case span <= 0:
			out[i] = 0.5
		default:
			out[i] = (v - lo) / span
		}
	}
	return out
}

// Bar draws a horizontal bar filled to v in [0, 1].
func Bar(v float64, width int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	v = clamp01(v)

	fill := int(math.Round(v * float64(width)))
	if v > 0 && fill == 0 {
		fill = 1
	}
	if fill > width {
		fill = width
	}
	return strings.Repeat("█", fill) + strings.Repeat(" ", width-fill)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
