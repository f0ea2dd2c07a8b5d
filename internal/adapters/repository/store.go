// Package repository stores the outcome of every processed lap.
package repository

import (
	"context"

	"github.com/okian/pitwall/internal/domain/model"
)

// Store provides read/write access to lap predictions.
type Store interface {
	// Save inserts or replaces the prediction keyed by its lap id.
	Save(ctx context.Context, p model.LapPrediction) error

	// Get returns the prediction for a lap.
	// Returns ErrNotFound if the lap is unknown.
	Get(ctx context.Context, lapID string) (model.LapPrediction, error)

	// List returns up to limit predictions ordered by lap number, then lap id.
	// A limit of zero returns everything.
	List(ctx context.Context, limit int) ([]model.LapPrediction, error)

	// Count returns the number of stored laps.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Open builds the store for a driver name.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(ctx, opts...), nil
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, ErrUnknownDriver
	}
}

func checkLimit(limit int) error {
	if limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}
