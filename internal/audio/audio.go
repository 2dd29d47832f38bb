package audio

import (
	"encoding/binary"
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Rate is SampleRate as a beep sample rate.
const Rate = beep.SampleRate(SampleRate)

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// ToInt16 interleaves stereo float samples into int16 PCM, clipping to range.
func ToInt16(dst []int16, src [][2]float64) {
	for i, s := range src {
		dst[i*2] = clip16(s[0])
		dst[i*2+1] = clip16(s[1])
	}
}

func clip16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	} else if v < -32768 {
		return -32768
	}
	return int16(v)
}
