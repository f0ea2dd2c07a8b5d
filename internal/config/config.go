// Package config defines service configuration and its layered loading.
package config

import (
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ArtifactsDir holds manifest.yaml and the files it names.
	ArtifactsDir string `koanf:"artifacts_dir"`

	// InferenceTimeoutMS bounds model arbitration per record.
	InferenceTimeoutMS int `koanf:"inference_timeout_ms"`

	// CanonicalModel wins exact score ties.
	CanonicalModel string `koanf:"canonical_model"`

	// QueueSize bounds the in-memory lap queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of lap workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many lap ids are remembered; 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// BatchConcurrency bounds concurrent evaluations in POST /predict/batch.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// MaxBatchSize caps the records in one batch request.
	MaxBatchSize int `koanf:"max_batch_size"`

	// StoreDriver is memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the lib/pq connection string for the postgres driver.
	StoreDSN string `koanf:"store_dsn"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		ArtifactsDir:       "artifacts",
		InferenceTimeoutMS: 2000,
		CanonicalModel:     "random_forest",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		BatchConcurrency:   runtime.NumCPU(),
		MaxBatchSize:       256,
		StoreDriver:        StoreMemory,
	}
}

// InferenceTimeout returns InferenceTimeoutMS as a duration.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMS) * time.Millisecond
}
