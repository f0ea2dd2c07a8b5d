package telemetry

// Compound identifiers.
const (
	CompoundSoft         = "soft"
	CompoundMedium       = "medium"
	CompoundHard         = "hard"
	CompoundIntermediate = "intermediate"
	CompoundWet          = "wet"
)

// Wear pattern identifiers.
const (
	WearEven   = "even"
	WearInner  = "inner"
	WearOuter  = "outer"
	WearCenter = "center"
	WearUneven = "uneven"
)

// Range is an inclusive numeric window.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the window.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Mid returns the centre of the window.
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// CompoundSpec is the reference behaviour of a tyre compound.
type CompoundSpec struct {
	ExpectedLife  int   // laps
	OptimalTemp   Range // °C
	PressureRange Range // PSI
	TrackTemp     Range // typical track temperature the compound is run in, °C
}

// Compounds holds the reference table used when the training data was generated.
var Compounds = map[string]CompoundSpec{ //nolint:gochecknoglobals // read-only reference table
	CompoundSoft:         {ExpectedLife: 22, OptimalTemp: Range{95, 105}, PressureRange: Range{19.5, 21.0}, TrackTemp: Range{20, 45}},
	CompoundMedium:       {ExpectedLife: 32, OptimalTemp: Range{100, 110}, PressureRange: Range{19.0, 21.5}, TrackTemp: Range{20, 45}},
	CompoundHard:         {ExpectedLife: 45, OptimalTemp: Range{105, 115}, PressureRange: Range{18.5, 21.0}, TrackTemp: Range{20, 45}},
	CompoundIntermediate: {ExpectedLife: 15, OptimalTemp: Range{85, 95}, PressureRange: Range{18.0, 20.0}, TrackTemp: Range{10, 25}},
	CompoundWet:          {ExpectedLife: 10, OptimalTemp: Range{75, 85}, PressureRange: Range{17.5, 19.5}, TrackTemp: Range{10, 25}},
}

// WearSeverity scores how damaging a wear pattern is.
var WearSeverity = map[string]float64{ //nolint:gochecknoglobals // read-only reference table
	WearEven:   0,
	WearInner:  2,
	WearOuter:  2,
	WearCenter: 3,
	WearUneven: 4,
}

// Operating windows applied uniformly at training time, independent of compound.
var (
	PressureWindow    = Range{19, 21.5} //nolint:gochecknoglobals // training constant
	TemperatureWindow = Range{95, 115}  //nolint:gochecknoglobals // training constant
)

// LapShare returns lap / expected life for the compound. ok is false for
// unknown compounds.
func LapShare(compound string, lap int) (share float64, ok bool) {
	cs, ok := Compounds[compound]
	if !ok || cs.ExpectedLife <= 0 {
		return 0, false
	}
	return float64(lap) / float64(cs.ExpectedLife), true
}

// Risk weights of the training-time risk formula.
const (
	riskLapWeight         = 40
	riskSeverityWeight    = 10
	riskDeformationWeight = 50
	riskGrainingWeight    = 15
	riskPressureWeight    = 10
	riskTemperatureWeight = 5
)

// MaxRisk is the largest value TrainingRisk can take with a lap share of 1.
const MaxRisk = riskLapWeight + 4*riskSeverityWeight + riskDeformationWeight +
	riskGrainingWeight + riskPressureWeight + riskTemperatureWeight

// RiskInputs are the terms of the training-time risk formula.
type RiskInputs struct {
	LapShare        float64
	WearSeverity    float64
	Deformation     bool
	Graining        bool
	PressureOptimal bool
	TempOptimal     bool
}

// TrainingRisk evaluates the risk_score column exactly as the training data
// was labelled.
func TrainingRisk(in RiskInputs) float64 {
	risk := in.LapShare*riskLapWeight + in.WearSeverity*riskSeverityWeight
	if in.Deformation {
		risk += riskDeformationWeight
	}
	if in.Graining {
		risk += riskGrainingWeight
	}
	if !in.PressureOptimal {
		risk += riskPressureWeight
	}
	if !in.TempOptimal {
		risk += riskTemperatureWeight
	}
	return risk
}
