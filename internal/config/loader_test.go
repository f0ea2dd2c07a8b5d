package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.InferenceTimeout(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CanonicalModel, convey.ShouldEqual, "random_forest")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("PITWALL_ADDR", ":8080")
			t.Setenv("PITWALL_QUEUE_SIZE", "500")
			t.Setenv("PITWALL_WORKER_COUNT", "16")
			t.Setenv("PITWALL_INFERENCE_TIMEOUT_MS", "150")
			t.Setenv("PITWALL_LOG_FORMAT", "json")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.InferenceTimeout(), convey.ShouldEqual, 150*time.Millisecond)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfig(t, `
addr: ":9090"
artifacts_dir: /srv/bundle
worker_count: 24
store_driver: postgres
store_dsn: postgres://pitwall@db/pitwall?sslmode=disable
`)
			t.Setenv("PITWALL_CONFIG", path)

			convey.Convey("Then it should load from the file", func() {
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ArtifactsDir, convey.ShouldEqual, "/srv/bundle")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StorePostgres)
			})

			convey.Convey("And env vars should take precedence over the file", func() {
				t.Setenv("PITWALL_WORKER_COUNT", "4")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("PITWALL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a value is invalid", func() {
			cases := map[string]string{
				"PITWALL_ADDR":                 "",
				"PITWALL_INFERENCE_TIMEOUT_MS": "0",
				"PITWALL_QUEUE_SIZE":           "-1",
				"PITWALL_STORE_DRIVER":         "sqlite",
				"PITWALL_LOG_FORMAT":           "xml",
				"PITWALL_MAX_BATCH_SIZE":       "0",
				"PITWALL_CANONICAL_MODEL":      "randomforest",
			}
			for key, val := range cases {
				clearConfigEnvVars(t)
				t.Setenv(key, val)
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the decision tree is chosen as canonical model", func() {
			t.Setenv("PITWALL_CANONICAL_MODEL", "decision_tree")
			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.CanonicalModel, convey.ShouldEqual, "decision_tree")
		})

		convey.Convey("When postgres is selected without a dsn", func() {
			t.Setenv("PITWALL_STORE_DRIVER", "postgres")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pitwall.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}
