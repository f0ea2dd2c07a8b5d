// Package model contains the lap types passed between the API, the queue,
// the workers and the store.
package model

import (
	"fmt"
	"time"

	"github.com/okian/pitwall/internal/domain/telemetry"
)

// Lap is one submitted observation waiting to be evaluated.
type Lap struct {
	LapID       string           // idempotency key, defaults to lap_<n>
	Record      telemetry.Record // cues and any measured readings
	RequestID   string           // request that submitted the lap
	SubmittedAt time.Time
}

// DefaultLapID is the id used when the client does not send one.
func DefaultLapID(lapNumber int) string {
	return fmt.Sprintf("lap_%d", lapNumber)
}

// Status of a processed lap.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// LapPrediction is what the store keeps for every processed lap. Failed laps
// carry ErrorKind and Error instead of a strategy.
type LapPrediction struct {
	LapID         string    `json:"lap_id"`
	LapNumber     int       `json:"lap_number"`
	Compound      string    `json:"compound"`
	Status        Status    `json:"status"`
	Strategy      string    `json:"strategy,omitempty"`
	Confidence    float64   `json:"confidence"`
	RiskScore     float64   `json:"risk_score"`
	LapPercentage float64   `json:"lap_percentage"`
	WinnerModel   string    `json:"winner_model,omitempty"`
	Degraded      bool      `json:"degraded"`
	Reconstructed []string  `json:"reconstructed,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ProcessedAt   time.Time `json:"processed_at"`
}
