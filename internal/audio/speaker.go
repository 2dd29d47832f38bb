package audio

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var speakerInit struct {
	once sync.Once
	err  error
}

// Speaker plays streamers on the local sound device.
type Speaker struct{}

// NewSpeaker initializes the sound device with a 100ms buffer. The device is
// process-wide; later calls share it.
func NewSpeaker() (*Speaker, error) {
	speakerInit.once.Do(func() {
		speakerInit.err = speaker.Init(Rate, Rate.N(FrameDuration*5))
	})
	if speakerInit.err != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerInit.err)
	}
	return &Speaker{}, nil
}

func (s *Speaker) SampleRate() beep.SampleRate { return Rate }

// Play replaces whatever the device is playing with st.
func (s *Speaker) Play(st beep.Streamer) {
	speaker.Clear()
	speaker.Play(st)
}

func (s *Speaker) Clear() {
	speaker.Clear()
}
