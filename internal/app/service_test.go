package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/telemetry"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const fixture = "../domain/artifact/testdata/bundle"

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func lap(n int, numeric bool) model.Lap {
	rec := telemetry.Record{
		Compound:            telemetry.CompoundSoft,
		LapNumber:           n,
		WearPattern:         telemetry.WearEven,
		SidewallDeformation: telemetry.Bool(false),
		IsGraining:          telemetry.Bool(false),
	}
	if numeric {
		rec.TyrePressure = telemetry.Float(20.6)
		rec.TyreTemperature = telemetry.Float(102)
		rec.TrackTemperature = telemetry.Float(28)
	}
	return model.Lap{LapID: model.DefaultLapID(n), Record: rec, SubmittedAt: time.Now().UTC()}
}

func waitForLaps(svc *service.Service, n int) []model.LapPrediction {
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for {
		laps, err := svc.List(ctx, 0)
		So(err, ShouldBeNil)
		if len(laps) >= n || time.Now().After(deadline) {
			return laps
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service over the fixture bundle", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithArtifactsDir(fixture),
			service.WithWorkerCount(2),
			service.WithQueueSize(64),
		)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When it is not started", func() {
			Convey("Then reads and predictions should be refused", func() {
				_, err := svc.Predict(ctx, lap(1, true).Record)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, err = svc.List(ctx, 0)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.Enqueue(ctx, lap(1, true)), ShouldBeFalse)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then stats should describe the bundle", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["bundleVersion"], ShouldEqual, "test-2024.1")
				So(stats["models"], ShouldContainKey, "random_forest")
			})

			Convey("Then a synchronous prediction should succeed", func() {
				out, err := svc.Predict(ctx, lap(15, true).Record)
				So(err, ShouldBeNil)
				So(out.Strategy, ShouldEqual, "PUSH")
			})

			Convey("And laps are enqueued", func() {
				So(svc.Enqueue(ctx, lap(3, true)), ShouldBeTrue)
				deformed := lap(10, false)
				deformed.Record.SidewallDeformation = telemetry.Bool(true)
				So(svc.Enqueue(ctx, deformed), ShouldBeTrue)
				broken := lap(7, false)
				broken.Record.IsGraining = nil
				So(svc.Enqueue(ctx, broken), ShouldBeTrue)

				Convey("Then every lap should be stored in lap order, failures included", func() {
					laps := waitForLaps(svc, 3)
					So(laps, ShouldHaveLength, 3)
					So(laps[0].LapID, ShouldEqual, "lap_3")
					So(laps[0].Status, ShouldEqual, model.StatusOK)
					So(laps[1].LapID, ShouldEqual, "lap_7")
					So(laps[1].Status, ShouldEqual, model.StatusFailed)
					So(laps[1].ErrorKind, ShouldEqual, "reconstruction")
					So(laps[2].Strategy, ShouldEqual, "PIT_NOW")
					So(laps[2].Reconstructed, ShouldHaveLength, 3)

					got, err := svc.Get(ctx, "lap_10")
					So(err, ShouldBeNil)
					So(got.LapNumber, ShouldEqual, 10)
				})
			})

			Convey("And a lap fails before its missing cue is supplied", func() {
				broken := lap(7, false)
				broken.Record.IsGraining = nil
				So(svc.SeenAndRecord(ctx, broken.LapID), ShouldBeFalse)
				So(svc.Enqueue(ctx, broken), ShouldBeTrue)
				laps := waitForLaps(svc, 1)
				So(laps, ShouldHaveLength, 1)
				So(laps[0].Status, ShouldEqual, model.StatusFailed)

				Convey("Then the corrected lap should be accepted and replace the failure", func() {
					deadline := time.Now().Add(5 * time.Second)
					for svc.Size() != 0 && time.Now().Before(deadline) {
						time.Sleep(5 * time.Millisecond)
					}
					So(svc.SeenAndRecord(ctx, broken.LapID), ShouldBeFalse)
					So(svc.Enqueue(ctx, lap(7, false)), ShouldBeTrue)

					var got model.LapPrediction
					for time.Now().Before(deadline) {
						var err error
						got, err = svc.Get(ctx, "lap_7")
						So(err, ShouldBeNil)
						if got.Status == model.StatusOK {
							break
						}
						time.Sleep(10 * time.Millisecond)
					}
					So(got.Status, ShouldEqual, model.StatusOK)
					So(got.Strategy, ShouldNotBeEmpty)
					So(svc.SeenAndRecord(ctx, "lap_7"), ShouldBeTrue)
				})
			})

			Convey("And the same lap id is seen twice", func() {
				So(svc.SeenAndRecord(ctx, "lap_1"), ShouldBeFalse)
				So(svc.SeenAndRecord(ctx, "lap_1"), ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)

				Convey("Then unrecording should allow a retry", func() {
					svc.Unrecord(ctx, "lap_1")
					So(svc.SeenAndRecord(ctx, "lap_1"), ShouldBeFalse)
				})
			})

			Convey("When laps are queued and the service stops", func() {
				for i := range 20 {
					So(svc.Enqueue(ctx, lap(i, i%2 == 0)), ShouldBeTrue)
				}
				So(svc.Stop(ctx), ShouldBeNil)

				Convey("Then queued laps should have been drained before stopping", func() {
					So(svc.GetStats()["started"], ShouldEqual, false)
					So(svc.Enqueue(ctx, lap(99, true)), ShouldBeFalse)
				})
			})
		})
	})

	Convey("Given a service pointing at a missing bundle", t, func() {
		svc := service.New(service.WithArtifactsDir(filepath.Join(t.TempDir(), "nope")))

		Convey("Then Start should fail", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service with an unknown store driver", t, func() {
		svc := service.New(service.WithArtifactsDir(fixture), service.WithStore("sqlite", ""))
		So(svc.Start(context.Background()), ShouldNotBeNil)
	})
}
