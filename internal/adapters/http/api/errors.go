package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/domain/engine"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrBackpressure  = errors.New("backpressure")
	ErrBatchTooLarge = errors.New("batch too large")
)

// kindError carries the operation and the sentinel kind in front of the cause.
type kindError struct {
	op    string
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.cause)
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// WrapKind tags cause with an operation and a sentinel kind.
func WrapKind(op string, kind, cause error) error {
	return &kindError{op: op, kind: kind, cause: cause}
}

// NewKind is WrapKind without a cause.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "batch_too_large"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	}

	kind := engine.ErrorKind(err)
	switch kind {
	case engine.KindInvalidRecord:
		return http.StatusUnprocessableEntity, kind
	case engine.KindReconstruction, engine.KindUnknownCat:
		return http.StatusBadRequest, kind
	case engine.KindArbitration:
		return http.StatusBadGateway, kind
	case engine.KindTimeout:
		return http.StatusGatewayTimeout, kind
	case engine.KindSchemaMismatch:
		return http.StatusInternalServerError, kind
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
