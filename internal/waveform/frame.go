package waveform

import (
	"math"
	"time"
)

// Frame is one rendering of the waveform handed to a Target.
type Frame struct {
	Bars     []float64     `json:"bars"`     // peak amplitude per bar, 0..1
	Width    int           `json:"width"`    // total pixel width of the waveform
	Progress float64       `json:"progress"` // played fraction, 0..1
	Duration time.Duration `json:"duration"`
	Playing  bool          `json:"playing"`
	Options  Options       `json:"options"`
}

// Viewport returns the left pixel offset of a window of the given width onto
// the frame. Without AutoScroll the window never moves. With AutoCenter the
// playhead is kept in the middle of the window, otherwise the window pages
// forward once the playhead leaves it.
func (f Frame) Viewport(window int) int {
	if !f.Options.AutoScroll || window <= 0 || f.Width <= window {
		return 0
	}
	head := int(math.Round(f.Progress * float64(f.Width)))
	maxOffset := f.Width - window

	var offset int
	if f.Options.AutoCenter {
		offset = head - window/2
	} else {
		offset = (head / window) * window
	}
	return max(0, min(offset, maxOffset))
}

// peaks reduces interleaved stereo samples to bar heights. Each bar covers an
// equal share of the clip and holds the largest absolute sample in it.
func peaks(samples [][2]float64, bars int) []float64 {
	if bars < 1 {
		bars = 1
	}
	out := make([]float64, bars)
	if len(samples) == 0 {
		return out
	}
	for i, s := range samples {
		b := i * bars / len(samples)
		v := math.Max(math.Abs(s[0]), math.Abs(s[1]))
		if v > out[b] {
			out[b] = math.Min(v, 1)
		}
	}
	return out
}

// layout returns the pixel width and bar count for a clip of duration d.
func layout(d time.Duration, o Options) (width, bars int) {
	width = int(math.Ceil(d.Seconds() * o.MinPxPerSec))
	bars = width / o.barStride()
	if bars < 1 {
		bars = 1
	}
	return width, bars
}
