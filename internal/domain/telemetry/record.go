// Package telemetry defines the tyre observation record and the compound
// reference data shared by reconstruction, encoding and outcome derivation.
package telemetry

import (
	"errors"
	"fmt"
)

// Field names as they appear on the wire and in training columns.
const (
	FieldCompound            = "compound"
	FieldLapNumber           = "lap_number"
	FieldWearPattern         = "wear_pattern"
	FieldSidewallDeformation = "sidewall_deformation"
	FieldTyrePressure        = "tyre_pressure"
	FieldIsGraining          = "is_graining"
	FieldTyreTemperature     = "tyre_temperature"
	FieldTrackTemperature    = "track_temperature"
)

// ErrInvalidRecord marks records that are malformed independently of any model.
var ErrInvalidRecord = errors.New("invalid telemetry record")

// Record is one tyre observation. Categorical and boolean fields drive
// reconstruction and must be present; numeric sensor readings may be nil
// until the reconstructor fills them.
type Record struct {
	Compound            string   `json:"compound"`
	LapNumber           int      `json:"lap_number"`
	WearPattern         string   `json:"wear_pattern"`
	SidewallDeformation *bool    `json:"sidewall_deformation"`
	TyrePressure        *float64 `json:"tyre_pressure,omitempty"`
	IsGraining          *bool    `json:"is_graining"`
	TyreTemperature     *float64 `json:"tyre_temperature,omitempty"`
	TrackTemperature    *float64 `json:"track_temperature,omitempty"`
}

// Validate rejects structurally impossible values. Missing cues are left to
// the reconstructor, which reports them with the field name.
func (r Record) Validate() error {
	if r.LapNumber < 0 {
		return fmt.Errorf("%w: lap_number must not be negative, got %d", ErrInvalidRecord, r.LapNumber)
	}
	return nil
}

// Complete reports whether every numeric sensor field is present.
func (r Record) Complete() bool {
	return r.TyrePressure != nil && r.TyreTemperature != nil && r.TrackTemperature != nil
}

// MissingNumeric lists the numeric fields that are absent, in wire order.
func (r Record) MissingNumeric() []string {
	var out []string
	if r.TyrePressure == nil {
		out = append(out, FieldTyrePressure)
	}
	if r.TyreTemperature == nil {
		out = append(out, FieldTyreTemperature)
	}
	if r.TrackTemperature == nil {
		out = append(out, FieldTrackTemperature)
	}
	return out
}

// Clone returns a deep copy so callers can fill fields without aliasing the input.
func (r Record) Clone() Record {
	c := r
	c.SidewallDeformation = cloneBool(r.SidewallDeformation)
	c.IsGraining = cloneBool(r.IsGraining)
	c.TyrePressure = cloneFloat(r.TyrePressure)
	c.TyreTemperature = cloneFloat(r.TyreTemperature)
	c.TrackTemperature = cloneFloat(r.TrackTemperature)
	return c
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
