package arbiter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrArbitration means neither model produced a usable prediction.
	ErrArbitration = errors.New("arbitration failed")
	// ErrArbitrationTimeout means no model completed before the deadline.
	ErrArbitrationTimeout = errors.New("arbitration timed out")
	// ErrModelPanic wraps a recovered panic inside an inference task.
	ErrModelPanic = errors.New("model panicked")
	// ErrInvalidPrediction marks a confidence or accuracy outside [0,1].
	ErrInvalidPrediction = errors.New("prediction out of range")
)

// Error carries the cause of each failed model, keyed by model id.
type Error struct {
	Causes map[string]error
}

func (e *Error) Error() string {
	ids := make([]string, 0, len(e.Causes))
	for id := range e.Causes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Causes[id])
	}
	return fmt.Sprintf("%s: %s", ErrArbitration, strings.Join(parts, "; "))
}

// Unwrap exposes the kind and every cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := []error{ErrArbitration}
	for _, err := range e.Causes {
		out = append(out, err)
	}
	return out
}

// TimeoutError reports the budget that elapsed with nothing completed.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrArbitrationTimeout, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrArbitrationTimeout }
