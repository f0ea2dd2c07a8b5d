// Package reconstruct estimates missing tyre sensor readings from the visual
// cues that are always observed: compound, wear pattern, graining, sidewall
// deformation and stint progress.
//
// Estimates are the sum of table rows: a compound baseline plus deltas keyed
// by wear pattern, surface condition and stint phase. Only absent numeric
// fields are filled; present readings are never altered.
package reconstruct

import (
	"math"

	"github.com/okian/pitwall/internal/domain/telemetry"
)

// Estimate is a contribution to each reconstructed reading.
type Estimate struct {
	Pressure  float64
	TyreTemp  float64
	TrackTemp float64
}

func (e Estimate) add(o Estimate) Estimate {
	return Estimate{
		Pressure:  e.Pressure + o.Pressure,
		TyreTemp:  e.TyreTemp + o.TyreTemp,
		TrackTemp: e.TrackTemp + o.TrackTemp,
	}
}

// Phase splits a stint by the share of expected compound life consumed.
type Phase string

const (
	PhaseEarly Phase = "early"
	PhasePeak  Phase = "peak"
	PhaseLate  Phase = "late"
)

const (
	earlyPhaseEnd  = 0.2
	latePhaseStart = 0.7
)

// PhaseOf classifies a lap share.
func PhaseOf(share float64) Phase {
	switch {
	case share < earlyPhaseEnd:
		return PhaseEarly
	case share > latePhaseStart:
		return PhaseLate
	default:
		return PhasePeak
	}
}

// Surface is the combination of graining and sidewall deformation flags.
type Surface struct {
	Graining    bool
	Deformation bool
}

// Tables holds every row the reconstructor sums.
type Tables struct {
	Baseline map[string]Estimate
	Wear     map[string]Estimate
	Surface  map[Surface]Estimate
	Phase    map[Phase]Estimate
}

// DefaultTables derives baselines from the compound reference table: the
// midpoint of the pressure window, of the optimal temperature window and of
// the track temperatures the compound is run in.
func DefaultTables() Tables {
	base := make(map[string]Estimate, len(telemetry.Compounds))
	for name, cs := range telemetry.Compounds {
		base[name] = Estimate{
			Pressure:  cs.PressureRange.Mid(),
			TyreTemp:  cs.OptimalTemp.Mid(),
			TrackTemp: cs.TrackTemp.Mid(),
		}
	}
	return Tables{
		Baseline: base,
		Wear: map[string]Estimate{
			telemetry.WearEven:   {},
			telemetry.WearCenter: {Pressure: 0.8, TyreTemp: 2},  // over-inflation
			telemetry.WearInner:  {Pressure: -0.3, TyreTemp: 3}, // camber load
			telemetry.WearOuter:  {Pressure: -0.5, TyreTemp: 3, TrackTemp: 1},
			telemetry.WearUneven: {TyreTemp: 4, TrackTemp: 2},
		},
		Surface: map[Surface]Estimate{
			{}:                                  {},
			{Graining: true}:                    {TyreTemp: -6, TrackTemp: -3},
			{Deformation: true}:                 {Pressure: -1.2, TyreTemp: 5},
			{Graining: true, Deformation: true}: {Pressure: -1.2, TyreTemp: -1, TrackTemp: -3},
		},
		Phase: map[Phase]Estimate{
			PhaseEarly: {TyreTemp: -4},
			PhasePeak:  {},
			PhaseLate:  {Pressure: 0.4, TyreTemp: 6},
		},
	}
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithTables replaces the default rule tables.
func WithTables(t Tables) Option {
	return func(r *Reconstructor) {
		r.tables = t
	}
}

// Reconstructor fills absent numeric fields. It holds no mutable state and is
// safe for concurrent use.
type Reconstructor struct {
	tables Tables
}

// New returns a Reconstructor using DefaultTables unless overridden.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{tables: DefaultTables()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct returns a copy of rec with every absent numeric field estimated.
// A complete record is returned unchanged.
func (r *Reconstructor) Reconstruct(rec telemetry.Record) (telemetry.Record, error) {
	if err := rec.Validate(); err != nil {
		return telemetry.Record{}, err
	}
	if err := requireCues(rec); err != nil {
		return telemetry.Record{}, err
	}
	out := rec.Clone()
	if rec.Complete() {
		return out, nil
	}

	est, err := r.Estimate(rec)
	if err != nil {
		return telemetry.Record{}, err
	}
	if out.TyrePressure == nil {
		out.TyrePressure = telemetry.Float(round1(est.Pressure))
	}
	if out.TyreTemperature == nil {
		out.TyreTemperature = telemetry.Float(round1(est.TyreTemp))
	}
	if out.TrackTemperature == nil {
		out.TrackTemperature = telemetry.Float(round1(est.TrackTemp))
	}
	return out, nil
}

// Estimate sums the table rows matching the record's cues.
func (r *Reconstructor) Estimate(rec telemetry.Record) (Estimate, error) {
	if err := requireCues(rec); err != nil {
		return Estimate{}, err
	}
	base, ok := r.tables.Baseline[rec.Compound]
	if !ok {
		return Estimate{}, &Error{Field: telemetry.FieldCompound, Reason: "no baseline for compound " + rec.Compound}
	}
	wear, ok := r.tables.Wear[rec.WearPattern]
	if !ok {
		return Estimate{}, &Error{Field: telemetry.FieldWearPattern, Reason: "no delta for wear pattern " + rec.WearPattern}
	}
	surface := r.tables.Surface[Surface{Graining: *rec.IsGraining, Deformation: *rec.SidewallDeformation}]

	share, _ := telemetry.LapShare(rec.Compound, rec.LapNumber)
	phase := r.tables.Phase[PhaseOf(share)]

	return base.add(wear).add(surface).add(phase), nil
}

func requireCues(rec telemetry.Record) error {
	switch {
	case rec.Compound == "":
		return &Error{Field: telemetry.FieldCompound, Reason: "required"}
	case rec.WearPattern == "":
		return &Error{Field: telemetry.FieldWearPattern, Reason: "required"}
	case rec.SidewallDeformation == nil:
		return &Error{Field: telemetry.FieldSidewallDeformation, Reason: "required"}
	case rec.IsGraining == nil:
		return &Error{Field: telemetry.FieldIsGraining, Reason: "required"}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
