package replay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/replay"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func stubService(out engine.Output, status int, hits *atomic.Int64) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "reconstruction", "message": "missing cue"})
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	return httptest.NewServer(mux)
}

func config(url string) *replay.Config {
	return &replay.Config{
		BaseURL: url,
		Records: 50,
		Workers: 4,
		Timeout: 5 * time.Second,
		Seed:    1,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a service that answers well-formed outputs", t, func() {
		var hits atomic.Int64
		srv := stubService(engine.Output{Strategy: "PUSH", Confidence: 0.8, RiskScore: 0.2, LapPercentage: 0.4}, http.StatusOK, &hits)
		defer srv.Close()

		Convey("When a replay with edge cases runs", func() {
			cfg := config(srv.URL)
			cfg.EdgeCases = true
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "records.json")
			stats, err := replay.Run(context.Background(), cfg)

			Convey("Then every record should be submitted and verified", func() {
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, 56)
				So(stats.Generated, ShouldEqual, 56)
				So(stats.Succeeded, ShouldEqual, 56)
				So(stats.Strategies["PUSH"], ShouldEqual, 56)
				So(stats.EdgeCases, ShouldEqual, 6)
				So(stats.EdgeMatches, ShouldEqual, 1)
				So(stats.RunID, ShouldNotBeEmpty)
			})

			Convey("Then the generated records should be saved", func() {
				data, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var saved []replay.Sample
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 56)
			})
		})
	})

	Convey("Given a service that answers out-of-range risk", t, func() {
		var hits atomic.Int64
		srv := stubService(engine.Output{Strategy: "PUSH", Confidence: 0.8, RiskScore: 1.5}, http.StatusOK, &hits)
		defer srv.Close()

		Convey("Then the run should report violations", func() {
			stats, err := replay.Run(context.Background(), config(srv.URL))
			So(errors.Is(err, replay.ErrViolations), ShouldBeTrue)
			So(stats.Violations, ShouldEqual, 50)
		})
	})

	Convey("Given a service that rejects every record", t, func() {
		var hits atomic.Int64
		srv := stubService(engine.Output{}, http.StatusBadRequest, &hits)
		defer srv.Close()

		Convey("Then failures should be counted but not treated as violations", func() {
			cfg := config(srv.URL)
			cfg.Verbose = true
			stats, err := replay.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.Failed, ShouldEqual, 50)
			So(stats.Succeeded, ShouldEqual, 0)
		})
	})

	Convey("Given no service is listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the health check should fail the run", func() {
			_, err := replay.Run(context.Background(), config(url))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given mixed results", t, func() {
		results := []replay.Result{
			{Sample: replay.Sample{Index: 0}, Output: engine.Output{Strategy: "PIT_NOW", Confidence: 1, RiskScore: 1, LapPercentage: 1}},
			{Sample: replay.Sample{Index: 1}, Output: engine.Output{Strategy: "BOX_BOX", Confidence: 0.5}},
			{Sample: replay.Sample{Index: 2}, Output: engine.Output{Strategy: "MONITOR", Confidence: -0.1}},
			{Sample: replay.Sample{Index: 3}, Err: errors.New("status 429")},
		}
		stats := &replay.Stats{}
		violations := replay.Verify(results, stats)

		Convey("Then only malformed successes should be violations", func() {
			So(violations, ShouldHaveLength, 2)
			So(violations[0].Index, ShouldEqual, 1)
			So(violations[1].Index, ShouldEqual, 2)
			So(stats.Succeeded, ShouldEqual, 3)
			So(stats.Failed, ShouldEqual, 1)
			So(stats.Violations, ShouldEqual, 2)
		})
	})
}
