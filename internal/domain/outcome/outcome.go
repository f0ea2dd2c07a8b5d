// Package outcome turns the winning prediction and the reconstructed record
// into bounded risk and stint-progress figures.
package outcome

import (
	"math"

	"github.com/okian/pitwall/internal/domain/arbiter"
	"github.com/okian/pitwall/internal/domain/telemetry"
)

// Strategy labels the classifiers emit.
const (
	StrategyPitNow   = "PIT_NOW"
	StrategyPitSoon  = "PIT_SOON"
	StrategyConserve = "CONSERVE"
	StrategyMonitor  = "MONITOR"
	StrategyPush     = "PUSH"
)

// DefaultUrgency orders strategies by how soon they call the car in.
var DefaultUrgency = map[string]float64{ //nolint:gochecknoglobals // read-only reference table
	StrategyPitNow:   1.0,
	StrategyPitSoon:  0.75,
	StrategyConserve: 0.5,
	StrategyMonitor:  0.35,
	StrategyPush:     0.15,
}

const (
	unknownUrgency = 0.5
	// Weight of the prediction in the blend at full confidence.
	defaultPredictionWeight = 0.4
)

// Outcome is the derived pair, both in [0,1].
type Outcome struct {
	RiskScore     float64 `json:"risk_score"`
	LapPercentage float64 `json:"lap_percentage"`
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithPredictionWeight sets how much a fully confident prediction moves the
// risk away from the telemetry formula.
func WithPredictionWeight(w float64) Option {
	return func(d *Deriver) {
		d.weight = clamp(w)
	}
}

// Deriver is stateless after construction.
type Deriver struct {
	urgency map[string]float64
	weight  float64
}

// New returns a Deriver with the default urgency table.
func New(opts ...Option) *Deriver {
	d := &Deriver{urgency: DefaultUrgency, weight: defaultPredictionWeight}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive computes the outcome. rec is expected to be reconstructed; absent
// readings count as out of window.
func (d *Deriver) Derive(winner arbiter.PredictionResult, rec telemetry.Record) Outcome {
	lap := 0.0
	if share, ok := telemetry.LapShare(rec.Compound, rec.LapNumber); ok {
		lap = clamp(share)
	}

	base := telemetry.TrainingRisk(telemetry.RiskInputs{
		LapShare:        lap,
		WearSeverity:    telemetry.WearSeverity[rec.WearPattern],
		Deformation:     rec.SidewallDeformation != nil && *rec.SidewallDeformation,
		Graining:        rec.IsGraining != nil && *rec.IsGraining,
		PressureOptimal: rec.TyrePressure != nil && telemetry.PressureWindow.Contains(*rec.TyrePressure),
		TempOptimal:     rec.TyreTemperature != nil && telemetry.TemperatureWindow.Contains(*rec.TyreTemperature),
	}) / telemetry.MaxRisk

	urgency, ok := d.urgency[winner.Strategy]
	if !ok {
		urgency = unknownUrgency
	}
	w := d.weight * clamp(winner.Confidence)
	risk := clamp(base)*(1-w) + w*urgency

	return Outcome{RiskScore: clamp(risk), LapPercentage: lap}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
