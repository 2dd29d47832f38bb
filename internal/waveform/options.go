package waveform

// Options is the fixed visual configuration an engine is built with.
type Options struct {
	WaveColor     string  `yaml:"wave_color" json:"wave_color"`
	ProgressColor string  `yaml:"progress_color" json:"progress_color"`
	MinPxPerSec   float64 `yaml:"min_px_per_sec" json:"min_px_per_sec"`
	BarWidth      int     `yaml:"bar_width" json:"bar_width"`
	BarGap        int     `yaml:"bar_gap" json:"bar_gap"`
	BarRadius     int     `yaml:"bar_radius" json:"bar_radius"`
	AutoScroll    bool    `yaml:"auto_scroll" json:"auto_scroll"`
	AutoCenter    bool    `yaml:"auto_center" json:"auto_center"`
}

// DefaultOptions returns the stock green-on-grey theme.
func DefaultOptions() Options {
	return Options{
		WaveColor:     "rgb(133, 147, 132)",
		ProgressColor: "rgb(101, 230, 90)",
		MinPxPerSec:   80,
		BarWidth:      2,
		BarGap:        1,
		BarRadius:     2,
		AutoScroll:    true,
		AutoCenter:    true,
	}
}

// barStride is the horizontal pixels consumed by one bar plus its gap.
func (o Options) barStride() int {
	stride := o.BarWidth + o.BarGap
	if stride < 1 {
		return 1
	}
	return stride
}
