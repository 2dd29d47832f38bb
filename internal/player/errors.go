package player

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMounted is returned by transport commands issued before an
	// engine exists.
	ErrNotMounted = errors.New("player: no engine mounted")
	// ErrStale is returned for a prompt whose response arrived after a newer
	// prompt was submitted.
	ErrStale = errors.New("player: response superseded by a newer prompt")
)

// LoadError reports a clip that could not be turned into a playable resource.
// The previously loaded clip stays active.
type LoadError struct {
	Stage string // "blob" or "engine"
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load audio (%s): %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
