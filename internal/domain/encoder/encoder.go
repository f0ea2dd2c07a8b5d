// Package encoder turns a reconstructed telemetry record into the feature
// vector the classifiers were trained on.
package encoder

import (
	"fmt"
	"slices"

	"github.com/okian/pitwall/internal/domain/artifact"
	"github.com/okian/pitwall/internal/domain/telemetry"
)

// FeatureVector is ordered exactly as the schema's feature columns.
type FeatureVector []float64

// Clone returns an independent copy.
func (v FeatureVector) Clone() FeatureVector { return slices.Clone(v) }

// column computes one feature from a record. Derived columns read the shared
// derivedInputs computed once per record.
type column struct {
	derived bool
	fn      func(s artifact.Schema, rec telemetry.Record, d derivedInputs) (float64, error)
}

// columns maps every training column name to how it is derived.
var columns = map[string]column{ //nolint:gochecknoglobals // static column registry
	"compound_encoded":         categorical(telemetry.FieldCompound, func(r telemetry.Record) string { return r.Compound }),
	"wear_pattern_encoded":     categorical(telemetry.FieldWearPattern, func(r telemetry.Record) string { return r.WearPattern }),
	"lap_number":               raw(func(r telemetry.Record) float64 { return float64(r.LapNumber) }),
	"sidewall_deformation_int": flag(telemetry.FieldSidewallDeformation, func(r telemetry.Record) *bool { return r.SidewallDeformation }),
	"is_graining_int":          flag(telemetry.FieldIsGraining, func(r telemetry.Record) *bool { return r.IsGraining }),
	"tyre_pressure":            numeric(telemetry.FieldTyrePressure, func(r telemetry.Record) *float64 { return r.TyrePressure }),
	"tyre_temperature":         numeric(telemetry.FieldTyreTemperature, func(r telemetry.Record) *float64 { return r.TyreTemperature }),
	"track_temperature":        numeric(telemetry.FieldTrackTemperature, func(r telemetry.Record) *float64 { return r.TrackTemperature }),
	"lap_percentage":           derived(func(d derivedInputs) float64 { return d.lapShare }),
	"temp_differential":        derived(func(d derivedInputs) float64 { return d.tyreTemp - d.trackTemp }),
	"is_pressure_optimal":      derived(func(d derivedInputs) float64 { return b2f(d.pressureOK) }),
	"is_temp_optimal":          derived(func(d derivedInputs) float64 { return b2f(d.tempOK) }),
	"wear_severity":            derived(func(d derivedInputs) float64 { return d.severity }),
	"risk_score": derived(func(d derivedInputs) float64 {
		return telemetry.TrainingRisk(telemetry.RiskInputs{
			LapShare:        d.lapShare,
			WearSeverity:    d.severity,
			Deformation:     d.deformation,
			Graining:        d.graining,
			PressureOptimal: d.pressureOK,
			TempOptimal:     d.tempOK,
		})
	}),
}

// KnownColumns lists every column the encoder can produce.
func KnownColumns() []string {
	out := make([]string, 0, len(columns))
	for name := range columns {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Encoder is bound to one schema and is safe for concurrent use.
type Encoder struct {
	schema  artifact.Schema
	plan    []column
	derived bool
}

// New fails with a schema mismatch when a column cannot be produced.
func New(schema artifact.Schema) (*Encoder, error) {
	if len(schema.FeatureColumns) == 0 {
		return nil, artifact.Mismatch("no feature columns")
	}
	plan := make([]column, len(schema.FeatureColumns))
	needsDerived := false
	for i, name := range schema.FeatureColumns {
		c, ok := columns[name]
		if !ok {
			return nil, artifact.Mismatch("column %q has no encoding", name)
		}
		plan[i] = c
		needsDerived = needsDerived || c.derived
	}
	for _, field := range []string{telemetry.FieldCompound, telemetry.FieldWearPattern} {
		if slices.Contains(schema.FeatureColumns, field+"_encoded") {
			if _, ok := schema.Categories[field]; !ok {
				return nil, artifact.Mismatch("no label encoder for %s", field)
			}
		}
	}
	return &Encoder{schema: schema, plan: plan, derived: needsDerived}, nil
}

// Width is the vector length.
func (e *Encoder) Width() int { return len(e.plan) }

// CheckCategories rejects categorical values the label encoders were never
// fitted on. Empty values are left for the reconstructor to report.
func (e *Encoder) CheckCategories(rec telemetry.Record) error {
	for _, c := range []struct{ field, value string }{
		{telemetry.FieldCompound, rec.Compound},
		{telemetry.FieldWearPattern, rec.WearPattern},
	} {
		if c.value == "" {
			continue
		}
		if _, fitted := e.schema.Categories[c.field]; !fitted {
			continue
		}
		if _, ok := e.schema.Code(c.field, c.value); !ok {
			return &UnknownCategoryError{Field: c.field, Value: c.value}
		}
	}
	return nil
}

// Encode builds a fresh vector for rec.
func (e *Encoder) Encode(rec telemetry.Record) (FeatureVector, error) {
	var d derivedInputs
	if e.derived {
		var err error
		if d, err = derive(rec); err != nil {
			return nil, err
		}
	}
	vec := make(FeatureVector, len(e.plan))
	for i, c := range e.plan {
		v, err := c.fn(e.schema, rec, d)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", e.schema.FeatureColumns[i], err)
		}
		vec[i] = v
	}
	return vec, nil
}

func raw(get func(telemetry.Record) float64) column {
	return column{fn: func(_ artifact.Schema, r telemetry.Record, _ derivedInputs) (float64, error) {
		return get(r), nil
	}}
}

func categorical(field string, get func(telemetry.Record) string) column {
	return column{fn: func(s artifact.Schema, r telemetry.Record, _ derivedInputs) (float64, error) {
		v := get(r)
		if v == "" {
			return 0, artifact.Mismatch("%s is absent", field)
		}
		code, ok := s.Code(field, v)
		if !ok {
			return 0, &UnknownCategoryError{Field: field, Value: v}
		}
		return float64(code), nil
	}}
}

func flag(field string, get func(telemetry.Record) *bool) column {
	return column{fn: func(_ artifact.Schema, r telemetry.Record, _ derivedInputs) (float64, error) {
		p := get(r)
		if p == nil {
			return 0, artifact.Mismatch("%s is absent", field)
		}
		return b2f(*p), nil
	}}
}

func numeric(field string, get func(telemetry.Record) *float64) column {
	return column{fn: func(_ artifact.Schema, r telemetry.Record, _ derivedInputs) (float64, error) {
		p := get(r)
		if p == nil {
			return 0, artifact.Mismatch("%s is absent", field)
		}
		return *p, nil
	}}
}

type derivedInputs struct {
	lapShare    float64
	severity    float64
	tyreTemp    float64
	trackTemp   float64
	pressureOK  bool
	tempOK      bool
	deformation bool
	graining    bool
}

func derived(f func(derivedInputs) float64) column {
	return column{derived: true, fn: func(_ artifact.Schema, _ telemetry.Record, d derivedInputs) (float64, error) {
		return f(d), nil
	}}
}

func derive(r telemetry.Record) (derivedInputs, error) {
	share, ok := telemetry.LapShare(r.Compound, r.LapNumber)
	if !ok {
		return derivedInputs{}, &UnknownCategoryError{Field: telemetry.FieldCompound, Value: r.Compound}
	}
	severity, ok := telemetry.WearSeverity[r.WearPattern]
	if !ok {
		return derivedInputs{}, &UnknownCategoryError{Field: telemetry.FieldWearPattern, Value: r.WearPattern}
	}
	if missing := r.MissingNumeric(); len(missing) > 0 {
		return derivedInputs{}, artifact.Mismatch("%s is absent", missing[0])
	}
	if r.SidewallDeformation == nil || r.IsGraining == nil {
		return derivedInputs{}, artifact.Mismatch("surface flags are absent")
	}
	return derivedInputs{
		lapShare:    share,
		severity:    severity,
		tyreTemp:    *r.TyreTemperature,
		trackTemp:   *r.TrackTemperature,
		pressureOK:  telemetry.PressureWindow.Contains(*r.TyrePressure),
		tempOK:      telemetry.TemperatureWindow.Contains(*r.TyreTemperature),
		deformation: *r.SidewallDeformation,
		graining:    *r.IsGraining,
	}, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
