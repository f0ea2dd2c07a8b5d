// Package replay generates synthetic tyre telemetry, replays it against a
// running service and verifies every answer is well formed.
package replay

import (
	"time"

	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/domain/telemetry"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Records    int           // Number of records to generate
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Generator seed; equal seeds replay equal records
	BlankRate  float64       // Share of records whose sensor readings are dropped
	EdgeCases  bool          // Also replay the named edge cases
	OutputFile string        // Optional JSON file for the generated records
	Verbose    bool          // Log every failed record
}

// Sample is one generated record with where it came from.
type Sample struct {
	Index    int              `json:"index"`
	Scenario string           `json:"scenario"`
	Record   telemetry.Record `json:"record"`
	// Expected is only set for named edge cases.
	Expected string `json:"expected,omitempty"`
}

// Result is the service's answer for one sample.
type Result struct {
	Sample     Sample
	StatusCode int
	Output     engine.Output
	ErrorCode  string
	Err        error
}

// Stats holds run statistics.
type Stats struct {
	RunID         string
	Generated     int
	Submitted     int
	Succeeded     int
	Failed        int
	Reconstructed int
	Strategies    map[string]int
	Violations    int
	EdgeMatches   int
	EdgeCases     int
	StartTime     time.Time
	Duration      time.Duration
}
