package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch is the kind of every encoder/artifact drift failure.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrManifest reports an unreadable or incomplete bundle manifest.
	ErrManifest = errors.New("invalid bundle manifest")
)

// SchemaMismatchError describes how the artifacts disagree with each other or
// with the encoder.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, e.Reason)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// Mismatch builds a SchemaMismatchError from a format string.
func Mismatch(format string, args ...any) error {
	return &SchemaMismatchError{Reason: fmt.Sprintf(format, args...)}
}
