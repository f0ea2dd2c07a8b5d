// Package service wires the strategy engine, the lap pipeline and the store
// into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/mq/queue"
	"github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/domain/artifact"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/telemetry"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the strategy service.
type Service struct {
	mu sync.RWMutex

	// Core components
	bundle  *artifact.Bundle
	engine  *engine.Engine
	store   repository.Store
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	// Configuration
	artifactsDir     string
	inferenceTimeout time.Duration
	canonicalModel   string
	workerCount      int
	queueSize        int
	dedupeSize       int
	storeDriver      string
	storeDSN         string

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithArtifactsDir sets the directory the model bundle is loaded from.
func WithArtifactsDir(dir string) Option {
	return func(s *Service) {
		s.artifactsDir = dir
	}
}

// WithBundle uses an already loaded bundle instead of reading artifactsDir.
func WithBundle(b *artifact.Bundle) Option {
	return func(s *Service) {
		s.bundle = b
	}
}

// WithInferenceTimeout bounds model arbitration per record.
func WithInferenceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.inferenceTimeout = d
		}
	}
}

// WithCanonicalModel sets the model preferred on exact score ties.
func WithCanonicalModel(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.canonicalModel = id
		}
	}
}

// WithWorkerCount sets the number of lap workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the lap queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache; 0 is unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore selects the store driver and its DSN.
func WithStore(driver, dsn string) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		artifactsDir:     "artifacts",
		inferenceTimeout: engine.DefaultTimeout,
		canonicalModel:   artifact.RandomForestID,
		workerCount:      runtime.NumCPU(),
		queueSize:        queue.DefaultCapacity,
		dedupeSize:       dedupe.DefaultMaxSize,
		storeDriver:      repository.DriverMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the bundle and starts the lap pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting strategy service...")

	if s.bundle == nil {
		b, err := artifact.LoadBundle(ctx, s.artifactsDir)
		if err != nil {
			return fmt.Errorf("load bundle %s: %w", s.artifactsDir, err)
		}
		s.bundle = b
	}
	eng, err := engine.New(s.bundle,
		engine.WithTimeout(s.inferenceTimeout),
		engine.WithCanonicalModel(s.canonicalModel),
		engine.WithLogger(s.logger.Named("engine")))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	store, err := repository.Open(ctx, s.storeDriver, s.storeDSN)
	if err != nil {
		return fmt.Errorf("open %s store: %w", s.storeDriver, err)
	}

	s.engine = eng
	s.store = store
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.EnginePredictor(eng), store,
		worker.WithLogger(s.logger),
		worker.WithForgetter(s.deduper))
	// Workers outlive request cancellation; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now().UTC()
	s.logger.Info(ctx, "strategy service started",
		logger.String("bundle_version", s.bundle.Version),
		logger.Float64("dt_accuracy", s.bundle.DecisionTree.Accuracy()),
		logger.Float64("rf_accuracy", s.bundle.RandomForest.Accuracy()),
		logger.String("store", s.storeDriver),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued laps and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping strategy service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "strategy service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Predict runs the engine synchronously.
func (s *Service) Predict(ctx context.Context, rec telemetry.Record) (engine.Recommendation, error) {
	if !s.running() {
		return engine.Recommendation{}, ErrNotStarted
	}
	return s.engine.Predict(ctx, rec)
}

// SeenAndRecord atomically checks if a lap id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordLapDuplicate()
	}
	return seen
}

// Unrecord removes a lap id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a lap for asynchronous evaluation.
func (s *Service) Enqueue(ctx context.Context, l model.Lap) bool {
	if !s.running() {
		return false
	}
	s.logger.Debug(ctx, "enqueueing lap",
		logger.String("lap_id", l.LapID),
		logger.Int("lap_number", l.Record.LapNumber),
		logger.String("request_id", l.RequestID))
	return s.queue.Enqueue(ctx, l)
}

// Get returns a stored lap prediction.
func (s *Service) Get(ctx context.Context, lapID string) (model.LapPrediction, error) {
	if !s.running() {
		return model.LapPrediction{}, ErrNotStarted
	}
	return s.store.Get(ctx, lapID)
}

// List returns stored lap predictions ordered by lap number.
func (s *Service) List(ctx context.Context, limit int) ([]model.LapPrediction, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"storeDriver":    s.storeDriver,
		"canonicalModel": s.canonicalModel,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["startedAt"] = s.startedAt
	stats["uptimeSeconds"] = time.Since(s.startedAt).Seconds()
	stats["queueLength"] = queueLen
	stats["dedupeEntries"] = s.deduper.Size()
	stats["bundleVersion"] = s.bundle.Version
	stats["models"] = map[string]float64{
		s.bundle.DecisionTree.ID(): s.bundle.DecisionTree.Accuracy(),
		s.bundle.RandomForest.ID(): s.bundle.RandomForest.Accuracy(),
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["storedLaps"] = n
		metrics.UpdateLapsStored(n)
	}
	metrics.UpdateQueueSize(queueLen, s.queueSize)
	return stats
}
