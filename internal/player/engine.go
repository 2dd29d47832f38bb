package player

import "github.com/satindergrewal/tunegen/internal/waveform"

// Engine is the waveform rendering and playback capability the controller
// drives. *waveform.Surfer satisfies it.
type Engine interface {
	Load(url string) error
	PlayPause() error
	Play() error
	Stop() error
	Playing() bool
	On(ev waveform.Event, fn func()) (unsubscribe func())
	Destroy() error
}

// EngineFactory builds an engine bound to target.
type EngineFactory func(target waveform.Target, opts waveform.Options) (Engine, error)

// SurferFactory returns an EngineFactory producing waveform.Surfer engines
// that resolve URLs through r and play through out.
func SurferFactory(r waveform.Resolver, out waveform.Output) EngineFactory {
	return func(target waveform.Target, opts waveform.Options) (Engine, error) {
		s, err := waveform.NewSurfer(target, opts, r, out)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
