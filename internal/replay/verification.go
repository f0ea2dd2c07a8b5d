package replay

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/pitwall/internal/domain/outcome"
)

// ErrViolations is returned when any successful answer is malformed.
var ErrViolations = errors.New("replay found malformed outputs")

var knownStrategies = map[string]bool{ //nolint:gochecknoglobals // read-only table
	outcome.StrategyPitNow:   true,
	outcome.StrategyPitSoon:  true,
	outcome.StrategyConserve: true,
	outcome.StrategyMonitor:  true,
	outcome.StrategyPush:     true,
}

// Violation describes one malformed answer.
type Violation struct {
	Index  int
	Reason string
}

// Verify checks every successful result: a known strategy and confidence,
// risk and lap percentage within [0,1]. It fills the counters on stats.
func Verify(results []Result, stats *Stats) []Violation {
	var out []Violation
	if stats.Strategies == nil {
		stats.Strategies = make(map[string]int)
	}
	for _, r := range results {
		stats.Submitted++
		if len(r.Sample.Record.MissingNumeric()) > 0 {
			stats.Reconstructed++
		}
		if r.Err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		stats.Strategies[r.Output.Strategy]++

		if !knownStrategies[r.Output.Strategy] {
			out = append(out, Violation{r.Sample.Index, fmt.Sprintf("unknown strategy %q", r.Output.Strategy)})
		}
		for name, v := range map[string]float64{
			"confidence":     r.Output.Confidence,
			"risk_score":     r.Output.RiskScore,
			"lap_percentage": r.Output.LapPercentage,
		} {
			if math.IsNaN(v) || v < 0 || v > 1 {
				out = append(out, Violation{r.Sample.Index, fmt.Sprintf("%s %v out of [0,1]", name, v)})
			}
		}
		if r.Sample.Expected != "" {
			stats.EdgeCases++
			if r.Sample.Expected == r.Output.Strategy {
				stats.EdgeMatches++
			}
		}
	}
	stats.Violations = len(out)
	return out
}
