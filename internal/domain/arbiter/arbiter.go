// Package arbiter runs both model variants concurrently on one feature vector
// and picks the prediction with the higher accuracy-weighted confidence.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pitwall/internal/domain/classifier"
	"github.com/okian/pitwall/internal/domain/encoder"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// DefaultCanonicalModel wins exact score ties.
const DefaultCanonicalModel = "random_forest"

// Model is a read-only classifier with its validation accuracy.
type Model interface {
	ID() string
	Accuracy() float64
	Predict(ctx context.Context, x []float64) (classifier.Prediction, error)
}

// PredictionResult is one model's answer.
type PredictionResult struct {
	Strategy      string  `json:"strategy"`
	Confidence    float64 `json:"confidence"`
	ModelID       string  `json:"model_id"`
	ModelAccuracy float64 `json:"model_accuracy"`
}

// WeightedScore is accuracy times confidence.
func (p PredictionResult) WeightedScore() float64 { return p.ModelAccuracy * p.Confidence }

// Decision is the arbitration outcome. RunnerUp is nil in degraded mode, in
// which case FailedModel and Failure describe the absorbed failure.
type Decision struct {
	Winner                PredictionResult  `json:"winner"`
	RunnerUp              *PredictionResult `json:"runner_up,omitempty"`
	WeightedScoreWinner   float64           `json:"weighted_score_winner"`
	WeightedScoreRunnerUp float64           `json:"weighted_score_runner_up"`
	Degraded              bool              `json:"degraded"`
	FailedModel           string            `json:"failed_model,omitempty"`
	Failure               error             `json:"-"`
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithCanonicalModel sets the model id preferred on exact ties.
func WithCanonicalModel(id string) Option {
	return func(a *Arbiter) {
		if id != "" {
			a.canonical = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Arbiter) {
		if l != nil {
			a.log = l
		}
	}
}

// Arbiter holds the two variants. It has no mutable state.
type Arbiter struct {
	models    [2]Model
	canonical string
	log       logger.Logger
}

// New pairs two models with distinct ids.
func New(first, second Model, opts ...Option) (*Arbiter, error) {
	if first == nil || second == nil {
		return nil, errors.New("arbiter needs two models")
	}
	if first.ID() == second.ID() {
		return nil, fmt.Errorf("arbiter models share id %q", first.ID())
	}
	a := &Arbiter{
		models:    [2]Model{first, second},
		canonical: DefaultCanonicalModel,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type outcome struct {
	model  Model
	result PredictionResult
	err    error
}

// Decide runs both models and waits for both or for the timeout. A non-positive
// timeout waits on ctx alone. Results arriving after the deadline are dropped.
func (a *Arbiter) Decide(ctx context.Context, vec encoder.FeatureVector, timeout time.Duration) (Decision, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Buffered so abandoned tasks can always deliver and exit.
	results := make(chan outcome, len(a.models))
	for _, m := range a.models {
		go a.infer(ctx, m, vec.Clone(), results)
	}

	done := make(map[string]outcome, len(a.models))
wait:
	for len(done) < len(a.models) {
		select {
		case o := <-results:
			done[o.model.ID()] = o
		case <-ctx.Done():
			break wait
		}
	}

	var ok []PredictionResult
	causes := make(map[string]error, len(a.models))
	completed := 0
	for _, m := range a.models {
		o, finished := done[m.ID()]
		switch {
		case !finished:
			causes[m.ID()] = ctx.Err()
		case o.err != nil:
			causes[m.ID()] = o.err
			if !isContextErr(o.err) || ctx.Err() == nil {
				completed++
			}
		default:
			ok = append(ok, o.result)
			completed++
		}
	}

	switch len(ok) {
	case 2:
		w, r := Select(ok[0], ok[1], a.canonical)
		return Decision{
			Winner:                w,
			RunnerUp:              &r,
			WeightedScoreWinner:   w.WeightedScore(),
			WeightedScoreRunnerUp: r.WeightedScore(),
		}, nil
	case 1:
		var failed string
		for id := range causes {
			failed = id
		}
		metrics.RecordDegradedDecision(failed)
		a.log.Warn(ctx, "arbitration degraded to a single model",
			logger.String("winner", ok[0].ModelID),
			logger.String("failed_model", failed),
			logger.Error(causes[failed]))
		return Decision{
			Winner:              ok[0],
			WeightedScoreWinner: ok[0].WeightedScore(),
			Degraded:            true,
			FailedModel:         failed,
			Failure:             causes[failed],
		}, nil
	}

	if completed == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Decision{}, &TimeoutError{Timeout: timeout}
	}
	return Decision{}, &Error{Causes: causes}
}

func (a *Arbiter) infer(ctx context.Context, m Model, x encoder.FeatureVector, out chan<- outcome) {
	start := time.Now()
	o := outcome{model: m}
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("%w: %s: %v", ErrModelPanic, m.ID(), r)
		}
		metrics.RecordInferenceLatency(m.ID(), float64(time.Since(start).Microseconds())/1000)
		if o.err != nil {
			metrics.RecordInferenceError(m.ID(), errorKind(o.err))
		}
		out <- o
	}()

	p, err := m.Predict(ctx, x)
	if err != nil {
		o.err = err
		return
	}
	if !unitInterval(p.Confidence) || !unitInterval(m.Accuracy()) {
		o.err = fmt.Errorf("%w: %s: confidence %v, accuracy %v", ErrInvalidPrediction, m.ID(), p.Confidence, m.Accuracy())
		return
	}
	o.result = PredictionResult{
		Strategy:      p.Label,
		Confidence:    p.Confidence,
		ModelID:       m.ID(),
		ModelAccuracy: m.Accuracy(),
	}
}

// Select orders two results by weighted score. Exact ties go to the canonical
// model, then to the lexicographically smaller id. The outcome does not depend
// on argument order.
func Select(a, b PredictionResult, canonical string) (winner, runnerUp PredictionResult) {
	sa, sb := a.WeightedScore(), b.WeightedScore()
	switch {
	case sa > sb:
		return a, b
	case sb > sa:
		return b, a
	case a.ModelID == canonical && b.ModelID != canonical:
		return a, b
	case b.ModelID == canonical && a.ModelID != canonical:
		return b, a
	case b.ModelID < a.ModelID:
		return b, a
	default:
		return a, b
	}
}

// unitInterval is false for NaN.
func unitInterval(v float64) bool { return v >= 0 && v <= 1 }

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrModelPanic):
		return "panic"
	case errors.Is(err, ErrInvalidPrediction):
		return "invalid"
	default:
		return "error"
	}
}
