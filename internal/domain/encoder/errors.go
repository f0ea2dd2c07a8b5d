package encoder

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is the kind of every unseen categorical value.
var ErrUnknownCategory = errors.New("unknown category")

// UnknownCategoryError carries the field and the value the encoders were
// never fitted on.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("%s: %s=%q", ErrUnknownCategory, e.Field, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }
