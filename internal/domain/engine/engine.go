// Package engine runs the full strategy pipeline for one telemetry record:
// reconstruct, encode, arbitrate, derive.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/okian/pitwall/internal/domain/arbiter"
	"github.com/okian/pitwall/internal/domain/artifact"
	"github.com/okian/pitwall/internal/domain/encoder"
	"github.com/okian/pitwall/internal/domain/outcome"
	"github.com/okian/pitwall/internal/domain/reconstruct"
	"github.com/okian/pitwall/internal/domain/telemetry"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// DefaultTimeout bounds arbitration when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// Output is the public answer for one record.
type Output struct {
	Strategy      string  `json:"strategy"`
	Confidence    float64 `json:"confidence"`
	RiskScore     float64 `json:"risk_score"`
	LapPercentage float64 `json:"lap_percentage"`
}

// Recommendation is Output plus how it was reached.
type Recommendation struct {
	Output
	Decision      arbiter.Decision `json:"decision"`
	Record        telemetry.Record `json:"record"`
	Reconstructed []string         `json:"reconstructed,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds arbitration per request.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCanonicalModel sets the model preferred on exact score ties.
func WithCanonicalModel(id string) Option {
	return func(e *Engine) {
		e.canonical = id
	}
}

// WithReconstructor replaces the default reconstructor.
func WithReconstructor(r *reconstruct.Reconstructor) Option {
	return func(e *Engine) {
		if r != nil {
			e.reconstructor = r
		}
	}
}

// Engine is immutable after construction; instances are independent.
type Engine struct {
	reconstructor *reconstruct.Reconstructor
	encoder       *encoder.Encoder
	arbiter       *arbiter.Arbiter
	deriver       *outcome.Deriver
	timeout       time.Duration
	canonical     string
	log           logger.Logger
}

// New builds an engine over a loaded bundle.
func New(b *artifact.Bundle, opts ...Option) (*Engine, error) {
	if b == nil {
		return nil, artifact.Mismatch("no bundle")
	}
	return NewFromModels(b.Schema(), b.DecisionTree, b.RandomForest, opts...)
}

// NewFromModels builds an engine over any two models sharing schema.
func NewFromModels(schema artifact.Schema, first, second arbiter.Model, opts ...Option) (*Engine, error) {
	e := &Engine{
		reconstructor: reconstruct.New(),
		deriver:       outcome.New(),
		timeout:       DefaultTimeout,
		canonical:     arbiter.DefaultCanonicalModel,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	enc, err := encoder.New(schema)
	if err != nil {
		return nil, err
	}
	arb, err := arbiter.New(first, second,
		arbiter.WithCanonicalModel(e.canonical),
		arbiter.WithLogger(e.log.Named("arbiter")))
	if err != nil {
		return nil, err
	}
	e.encoder = enc
	e.arbiter = arb
	return e, nil
}

// PredictStrategy returns the four-field answer.
func (e *Engine) PredictStrategy(ctx context.Context, rec telemetry.Record) (Output, error) {
	r, err := e.Predict(ctx, rec)
	if err != nil {
		return Output{}, err
	}
	return r.Output, nil
}

// Predict runs the pipeline and keeps the intermediate decision.
func (e *Engine) Predict(ctx context.Context, rec telemetry.Record) (Recommendation, error) {
	start := time.Now()
	r, err := e.predict(ctx, rec)
	if err != nil {
		metrics.RecordPipelineError(ErrorKind(err))
		e.log.Debug(ctx, "prediction failed",
			logger.String("kind", ErrorKind(err)),
			logger.Error(err))
		return Recommendation{}, err
	}
	metrics.RecordPrediction(r.Strategy, r.Decision.Winner.ModelID)
	metrics.RecordRiskScore(r.RiskScore)
	metrics.RecordPredictionDuration(float64(time.Since(start).Microseconds()) / 1000)
	for _, f := range r.Reconstructed {
		metrics.RecordReconstructedField(f)
	}
	return r, nil
}

func (e *Engine) predict(ctx context.Context, rec telemetry.Record) (Recommendation, error) {
	if err := e.encoder.CheckCategories(rec); err != nil {
		return Recommendation{}, err
	}
	full, err := e.reconstructor.Reconstruct(rec)
	if err != nil {
		return Recommendation{}, err
	}
	vec, err := e.encoder.Encode(full)
	if err != nil {
		return Recommendation{}, err
	}
	d, err := e.arbiter.Decide(ctx, vec, e.timeout)
	if err != nil {
		return Recommendation{}, err
	}
	o := e.deriver.Derive(d.Winner, full)

	return Recommendation{
		Output: Output{
			Strategy:      d.Winner.Strategy,
			Confidence:    d.Winner.Confidence,
			RiskScore:     o.RiskScore,
			LapPercentage: o.LapPercentage,
		},
		Decision:      d,
		Record:        full,
		Reconstructed: rec.MissingNumeric(),
	}, nil
}

// Error kinds reported in logs, metrics and stored lap failures.
const (
	KindInvalidRecord  = "invalid_record"
	KindReconstruction = "reconstruction"
	KindUnknownCat     = "unknown_category"
	KindSchemaMismatch = "schema_mismatch"
	KindArbitration    = "arbitration"
	KindTimeout        = "timeout"
	KindInternal       = "internal"
)

// ErrorKind classifies a pipeline error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrInvalidRecord):
		return KindInvalidRecord
	case errors.Is(err, reconstruct.ErrReconstruction):
		return KindReconstruction
	case errors.Is(err, encoder.ErrUnknownCategory):
		return KindUnknownCat
	case errors.Is(err, artifact.ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, arbiter.ErrArbitrationTimeout):
		return KindTimeout
	case errors.Is(err, arbiter.ErrArbitration):
		return KindArbitration
	default:
		return KindInternal
	}
}
