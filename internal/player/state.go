package player

// State is the externally visible transport state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// toggled is the state a play/pause flip leads to from s.
func (s State) toggled() State {
	if s == Playing {
		return Paused
	}
	return Playing
}
