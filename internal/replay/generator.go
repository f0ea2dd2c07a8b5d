package replay

import (
	"math"
	"math/rand/v2"

	"github.com/okian/pitwall/internal/domain/telemetry"
)

// Scenario names and their share of generated records.
const (
	ScenarioNormal     = "normal"
	ScenarioAggressive = "aggressive"
	ScenarioWeather    = "weather"
	ScenarioIncident   = "incident"
	ScenarioStrategy   = "strategy"
)

type weighted[T any] struct {
	value  T
	weight float64
}

var scenarioMix = []weighted[string]{ //nolint:gochecknoglobals // read-only table
	{ScenarioNormal, 0.60},
	{ScenarioAggressive, 0.15},
	{ScenarioWeather, 0.10},
	{ScenarioIncident, 0.10},
	{ScenarioStrategy, 0.05},
}

var compoundUsage = []weighted[string]{ //nolint:gochecknoglobals // read-only table
	{telemetry.CompoundSoft, 0.35},
	{telemetry.CompoundMedium, 0.40},
	{telemetry.CompoundHard, 0.20},
	{telemetry.CompoundIntermediate, 0.03},
	{telemetry.CompoundWet, 0.02},
}

// Wear pattern weights by stint stress, in even/inner/outer/center/uneven order.
var (
	wearOrder    = []string{telemetry.WearEven, telemetry.WearInner, telemetry.WearOuter, telemetry.WearCenter, telemetry.WearUneven} //nolint:gochecknoglobals // read-only table
	wearStressed = []float64{0.2, 0.25, 0.25, 0.15, 0.15}                                                                             //nolint:gochecknoglobals // read-only table
	wearIncident = []float64{0.1, 0.2, 0.2, 0.1, 0.4}                                                                                 //nolint:gochecknoglobals // read-only table
	wearCalm     = []float64{0.6, 0.15, 0.15, 0.05, 0.05}                                                                              //nolint:gochecknoglobals // read-only table
)

// How prone each compound is to graining.
var grainingSusceptibility = map[string]float64{ //nolint:gochecknoglobals // read-only table
	telemetry.CompoundSoft:         0.7,
	telemetry.CompoundMedium:       0.4,
	telemetry.CompoundHard:         0.3,
	telemetry.CompoundIntermediate: 0.5,
	telemetry.CompoundWet:          0.3,
}

// Generator produces telemetry records with the scenario mix of the training
// data. It is not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	blankRate float64
}

// NewGenerator returns a generator; equal seeds produce equal sequences.
func NewGenerator(seed uint64, blankRate float64) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		blankRate: math.Max(0, math.Min(1, blankRate)),
	}
}

// Generate returns n samples.
func (g *Generator) Generate(n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		scenario := pick(g.rng, scenarioMix)
		out[i] = Sample{Index: i, Scenario: scenario, Record: g.record(scenario)}
	}
	return out
}

func (g *Generator) record(scenario string) telemetry.Record {
	compound := pick(g.rng, compoundUsage)
	cs := telemetry.Compounds[compound]
	life := float64(cs.ExpectedLife)

	var lap float64
	switch scenario {
	case ScenarioNormal:
		lap = g.uniform(1, life*0.95)
	case ScenarioAggressive:
		lap = g.uniform(1, life*0.85)
	case ScenarioWeather:
		lap = g.uniform(1, life*0.60)
	case ScenarioIncident:
		lap = g.uniform(life*0.3, life*0.70)
	default:
		lap = g.uniform(life*0.85, life*1.15)
	}
	lapNumber := max(1, int(lap))
	wear := float64(lapNumber) / life

	trackTemp := math.Trunc(g.uniform(cs.TrackTemp.Min, cs.TrackTemp.Max))
	if scenario == ScenarioWeather && compound != telemetry.CompoundIntermediate && compound != telemetry.CompoundWet {
		trackTemp = math.Trunc(g.uniform(15, 30))
	}

	var offset float64
	switch {
	case wear < 0.2:
		offset = g.uniform(-10, 0)
	case wear < 0.7:
		offset = g.uniform(-5, 5)
	default:
		offset = g.uniform(0, 15)
	}
	tyreTemp := math.Trunc(trackTemp + g.uniform(5, 15) + offset)

	variance := g.uniform(-1.5, 1.5)
	if wear > 0.8 || tyreTemp > cs.OptimalTemp.Max+10 {
		variance += g.uniform(-1, 0.5)
	}
	pressure := math.Round((g.uniform(cs.PressureRange.Min, cs.PressureRange.Max)+variance)*10) / 10

	weights := wearCalm
	switch {
	case scenario == ScenarioAggressive || wear > 0.75:
		weights = wearStressed
	case scenario == ScenarioIncident:
		weights = wearIncident
	}
	wearPattern := wearOrder[pickIndex(g.rng, weights)]

	grainP := grainingSusceptibility[compound]
	if lapNumber < 8 && trackTemp < 25 {
		grainP *= 2.5
	}
	if tyreTemp < cs.OptimalTemp.Min {
		grainP *= 1.5
	}
	graining := g.rng.Float64() < math.Min(grainP, 0.95)

	deformP := 0.01
	switch {
	case wear > 1.0:
		deformP = 0.25
	case wear > 0.9:
		deformP = 0.08
	case pressure < 17 || pressure > 24:
		deformP = 0.15
	}
	deformation := g.rng.Float64() < deformP

	rec := telemetry.Record{
		Compound:            compound,
		LapNumber:           lapNumber,
		WearPattern:         wearPattern,
		SidewallDeformation: telemetry.Bool(deformation),
		IsGraining:          telemetry.Bool(graining),
		TyrePressure:        telemetry.Float(pressure),
		TyreTemperature:     telemetry.Float(tyreTemp),
		TrackTemperature:    telemetry.Float(trackTemp),
	}
	if g.rng.Float64() < g.blankRate {
		g.blank(&rec)
	}
	return rec
}

// blank drops a random non-empty subset of the sensor readings, the way a
// vision-only lap arrives.
func (g *Generator) blank(rec *telemetry.Record) {
	mask := 1 + g.rng.IntN(7)
	if mask&1 != 0 {
		rec.TyrePressure = nil
	}
	if mask&2 != 0 {
		rec.TyreTemperature = nil
	}
	if mask&4 != 0 {
		rec.TrackTemperature = nil
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func pick[T any](rng *rand.Rand, table []weighted[T]) T {
	weights := make([]float64, len(table))
	for i, w := range table {
		weights[i] = w.weight
	}
	return table[pickIndex(rng, weights)].value
}

func pickIndex(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

// EdgeCases are named race situations with the strategy a race engineer
// would expect.
func EdgeCases() []Sample {
	mk := func(name, compound string, lap int, wear string, deformed bool, pressure float64, graining bool, tyre, track float64, want string) Sample {
		return Sample{
			Scenario: name,
			Expected: want,
			Record: telemetry.Record{
				Compound:            compound,
				LapNumber:           lap,
				WearPattern:         wear,
				SidewallDeformation: telemetry.Bool(deformed),
				TyrePressure:        telemetry.Float(pressure),
				IsGraining:          telemetry.Bool(graining),
				TyreTemperature:     telemetry.Float(tyre),
				TrackTemperature:    telemetry.Float(track),
			},
		}
	}
	return []Sample{
		mk("monaco_rain_start", telemetry.CompoundIntermediate, 3, telemetry.WearEven, false, 19.5, false, 88, 18, "MONITOR"),
		mk("silverstone_blowout_risk", telemetry.CompoundHard, 42, telemetry.WearOuter, false, 16.5, false, 118, 35, "PIT_NOW"),
		mk("singapore_overheating", telemetry.CompoundMedium, 28, telemetry.WearCenter, false, 22.5, false, 125, 45, "PIT_SOON"),
		mk("barcelona_cold_graining", telemetry.CompoundSoft, 6, telemetry.WearUneven, false, 20.0, true, 88, 16, "CONSERVE"),
		mk("perfect_push_conditions", telemetry.CompoundSoft, 8, telemetry.WearEven, false, 20.5, false, 102, 28, "PUSH"),
		mk("critical_sidewall_deformation", telemetry.CompoundMedium, 25, telemetry.WearEven, true, 20.0, false, 105, 30, "PIT_NOW"),
	}
}
