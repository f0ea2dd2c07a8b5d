package encoder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/pitwall/internal/domain/artifact"
	"github.com/okian/pitwall/internal/domain/encoder"
	"github.com/okian/pitwall/internal/domain/reconstruct"
	"github.com/okian/pitwall/internal/domain/telemetry"
	. "github.com/smartystreets/goconvey/convey"
)

func fixtureSchema() artifact.Schema {
	b, err := artifact.LoadBundle(context.Background(), "../artifact/testdata/bundle")
	if err != nil {
		panic(err)
	}
	return b.Schema()
}

func completeSoftLap15() telemetry.Record {
	return telemetry.Record{
		Compound:            telemetry.CompoundSoft,
		LapNumber:           15,
		WearPattern:         telemetry.WearEven,
		SidewallDeformation: telemetry.Bool(false),
		TyrePressure:        telemetry.Float(20.6),
		IsGraining:          telemetry.Bool(false),
		TyreTemperature:     telemetry.Float(102),
		TrackTemperature:    telemetry.Float(28),
	}
}

func TestEncode(t *testing.T) {
	Convey("Given an encoder bound to the training schema", t, func() {
		enc, err := encoder.New(fixtureSchema())
		So(err, ShouldBeNil)
		So(enc.Width(), ShouldEqual, 14)

		Convey("When encoding a complete record", func() {
			vec, err := enc.Encode(completeSoftLap15())

			Convey("Then every column should follow the training derivation", func() {
				So(err, ShouldBeNil)
				So(len(vec), ShouldEqual, 14)
				So(vec[0], ShouldEqual, 3)  // soft
				So(vec[1], ShouldEqual, 15) // lap
				So(vec[2], ShouldEqual, 1)  // even
				So(vec[3], ShouldEqual, 0)
				So(vec[4], ShouldEqual, 20.6)
				So(vec[5], ShouldEqual, 0)
				So(vec[6], ShouldEqual, 102)
				So(vec[7], ShouldEqual, 28)
				So(vec[8], ShouldAlmostEqual, 15.0/22.0, 1e-12)
				So(vec[9], ShouldEqual, 74)
				So(vec[10], ShouldEqual, 1)
				So(vec[11], ShouldEqual, 1)
				So(vec[12], ShouldEqual, 0)
				So(vec[13], ShouldAlmostEqual, 15.0/22.0*40, 1e-9)
			})

			Convey("Then running the reconstructor first should not change the vector", func() {
				rec, err := reconstruct.New().Reconstruct(completeSoftLap15())
				So(err, ShouldBeNil)
				again, err := enc.Encode(rec)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, vec)
			})
		})

		Convey("When every penalty applies", func() {
			rec := completeSoftLap15()
			rec.WearPattern = telemetry.WearUneven
			rec.SidewallDeformation = telemetry.Bool(true)
			rec.IsGraining = telemetry.Bool(true)
			rec.TyrePressure = telemetry.Float(23)
			rec.TyreTemperature = telemetry.Float(120)
			rec.LapNumber = 22
			vec, err := enc.Encode(rec)

			Convey("Then risk_score should hit the formula maximum", func() {
				So(err, ShouldBeNil)
				So(vec[10], ShouldEqual, 0)
				So(vec[11], ShouldEqual, 0)
				So(vec[12], ShouldEqual, 4)
				So(vec[13], ShouldAlmostEqual, telemetry.MaxRisk, 1e-9)
			})
		})

		Convey("When the compound was never seen in training", func() {
			rec := completeSoftLap15()
			rec.Compound = "hypersoft"
			_, err := enc.Encode(rec)

			Convey("Then an unknown category error should name field and value", func() {
				var uerr *encoder.UnknownCategoryError
				So(errors.As(err, &uerr), ShouldBeTrue)
				So(uerr.Field, ShouldEqual, telemetry.FieldCompound)
				So(uerr.Value, ShouldEqual, "hypersoft")
				So(errors.Is(err, encoder.ErrUnknownCategory), ShouldBeTrue)
				So(errors.Is(enc.CheckCategories(rec), encoder.ErrUnknownCategory), ShouldBeTrue)
			})
		})

		Convey("When the wear pattern was never seen in training", func() {
			rec := completeSoftLap15()
			rec.WearPattern = "feathered"

			Convey("Then the category check should reject it", func() {
				var uerr *encoder.UnknownCategoryError
				So(errors.As(enc.CheckCategories(rec), &uerr), ShouldBeTrue)
				So(uerr.Field, ShouldEqual, telemetry.FieldWearPattern)
			})
		})

		Convey("When a numeric source field is still absent", func() {
			rec := completeSoftLap15()
			rec.TrackTemperature = nil
			_, err := enc.Encode(rec)

			Convey("Then it should be reported as a schema mismatch", func() {
				So(errors.Is(err, artifact.ErrSchemaMismatch), ShouldBeTrue)
			})
		})

		Convey("When encoding the same record twice", func() {
			a, _ := enc.Encode(completeSoftLap15())
			b, _ := enc.Encode(completeSoftLap15())
			a[0] = 99

			Convey("Then each call should return a fresh vector", func() {
				So(b[0], ShouldEqual, 3)
			})
		})
	})
}

func TestNewEncoder(t *testing.T) {
	Convey("Given schemas the encoder cannot serve", t, func() {
		Convey("When a column has no encoding", func() {
			_, err := encoder.New(artifact.Schema{FeatureColumns: []string{"lap_number", "tyre_age"}})
			So(errors.Is(err, artifact.ErrSchemaMismatch), ShouldBeTrue)
		})

		Convey("When an encoded categorical column has no label encoder", func() {
			_, err := encoder.New(artifact.Schema{FeatureColumns: []string{"compound_encoded"}})
			So(errors.Is(err, artifact.ErrSchemaMismatch), ShouldBeTrue)
		})

		Convey("When the schema is empty", func() {
			_, err := encoder.New(artifact.Schema{})
			So(errors.Is(err, artifact.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given the known column registry", t, func() {
		So(encoder.KnownColumns(), ShouldContain, "risk_score")
		So(len(encoder.KnownColumns()), ShouldEqual, 14)
	})
}
