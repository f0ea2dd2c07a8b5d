package outcome_test

import (
	"math"
	"testing"

	"github.com/okian/pitwall/internal/domain/arbiter"
	"github.com/okian/pitwall/internal/domain/outcome"
	"github.com/okian/pitwall/internal/domain/telemetry"
	. "github.com/smartystreets/goconvey/convey"
)

func record(compound string, lap int) telemetry.Record {
	return telemetry.Record{
		Compound:            compound,
		LapNumber:           lap,
		WearPattern:         telemetry.WearEven,
		SidewallDeformation: telemetry.Bool(false),
		IsGraining:          telemetry.Bool(false),
		TyrePressure:        telemetry.Float(20.5),
		TyreTemperature:     telemetry.Float(100),
		TrackTemperature:    telemetry.Float(30),
	}
}

func TestDerive(t *testing.T) {
	Convey("Given the default deriver", t, func() {
		d := outcome.New()
		push := arbiter.PredictionResult{Strategy: outcome.StrategyPush, Confidence: 0.9}
		pitNow := arbiter.PredictionResult{Strategy: outcome.StrategyPitNow, Confidence: 0.9}

		Convey("When a soft tyre is halfway through its expected life", func() {
			out := d.Derive(push, record(telemetry.CompoundSoft, 11))

			Convey("Then lap percentage should be the share of expected life", func() {
				So(out.LapPercentage, ShouldAlmostEqual, 0.5, 1e-12)
			})

			Convey("Then risk should blend the telemetry risk with the strategy urgency", func() {
				base := 20.0 / 160.0
				w := 0.4 * 0.9
				So(out.RiskScore, ShouldAlmostEqual, base*(1-w)+w*0.15, 1e-12)
			})
		})

		Convey("When the tyre is far past its expected life", func() {
			out := d.Derive(pitNow, record(telemetry.CompoundWet, 500))

			Convey("Then lap percentage should clamp to 1", func() {
				So(out.LapPercentage, ShouldEqual, 1)
				So(out.RiskScore, ShouldBeLessThanOrEqualTo, 1)
			})
		})

		Convey("When every penalty applies and the model is certain about pitting", func() {
			rec := record(telemetry.CompoundSoft, 40)
			rec.WearPattern = telemetry.WearUneven
			rec.SidewallDeformation = telemetry.Bool(true)
			rec.IsGraining = telemetry.Bool(true)
			rec.TyrePressure = telemetry.Float(30)
			rec.TyreTemperature = telemetry.Float(140)
			out := d.Derive(arbiter.PredictionResult{Strategy: outcome.StrategyPitNow, Confidence: 1}, rec)

			Convey("Then risk should reach exactly 1", func() {
				So(out.RiskScore, ShouldEqual, 1)
			})
		})

		Convey("When a pit call and a push call share the same telemetry", func() {
			rec := record(telemetry.CompoundMedium, 10)
			So(d.Derive(pitNow, rec).RiskScore, ShouldBeGreaterThan, d.Derive(push, rec).RiskScore)
		})

		Convey("When inputs are extreme or not numbers", func() {
			cases := []struct {
				p   arbiter.PredictionResult
				rec telemetry.Record
			}{
				{arbiter.PredictionResult{Strategy: "UNKNOWN", Confidence: math.NaN()}, record(telemetry.CompoundHard, 0)},
				{arbiter.PredictionResult{Strategy: outcome.StrategyPush, Confidence: 7}, record(telemetry.CompoundHard, 1 << 20)},
				{arbiter.PredictionResult{Strategy: outcome.StrategyConserve, Confidence: -3}, record("slick", 4)},
				{arbiter.PredictionResult{Strategy: outcome.StrategyMonitor, Confidence: 0.5}, telemetry.Record{}},
			}

			Convey("Then both outputs should stay within [0,1]", func() {
				for _, c := range cases {
					out := d.Derive(c.p, c.rec)
					So(out.RiskScore, ShouldBeBetweenOrEqual, 0, 1)
					So(out.LapPercentage, ShouldBeBetweenOrEqual, 0, 1)
					So(math.IsNaN(out.RiskScore), ShouldBeFalse)
				}
			})
		})

		Convey("When lap zero is submitted", func() {
			out := d.Derive(push, record(telemetry.CompoundSoft, 0))
			So(out.LapPercentage, ShouldEqual, 0)
		})
	})

	Convey("Given a deriver that ignores the prediction", t, func() {
		d := outcome.New(outcome.WithPredictionWeight(0))
		out := d.Derive(arbiter.PredictionResult{Strategy: outcome.StrategyPitNow, Confidence: 1}, record(telemetry.CompoundSoft, 11))

		Convey("Then risk should be the normalised telemetry risk", func() {
			So(out.RiskScore, ShouldAlmostEqual, 20.0/160.0, 1e-12)
		})
	})
}
