package reconstruct

import (
	"errors"
	"fmt"
)

// ErrReconstruction is the kind of every reconstruction failure.
var ErrReconstruction = errors.New("reconstruction failed")

// Error names the cue that prevented reconstruction.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrReconstruction, e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return ErrReconstruction }
