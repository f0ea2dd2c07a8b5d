// Package worker evaluates queued laps with the strategy engine and writes
// the outcome, success or failure, to the lap store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Predictor runs the strategy pipeline for one record.
type Predictor interface {
	Predict(ctx context.Context, l model.Lap) (engine.Recommendation, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, l model.Lap) (engine.Recommendation, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, l model.Lap) (engine.Recommendation, error) {
	return f(ctx, l)
}

// EnginePredictor adapts an engine to Predictor.
func EnginePredictor(e *engine.Engine) Predictor {
	return PredictorFunc(func(ctx context.Context, l model.Lap) (engine.Recommendation, error) {
		return e.Predict(ctx, l.Record)
	})
}

// Saver persists processed laps.
type Saver interface {
	Save(ctx context.Context, p model.LapPrediction) error
}

// Forgetter releases a lap id so the same lap can be submitted again.
type Forgetter interface {
	Unrecord(ctx context.Context, lapID string)
}

// Queue defines how workers receive laps.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Lap
}

// InMemoryWorker processes laps from one dequeue channel.
type InMemoryWorker struct {
	queue     Queue
	predictor Predictor
	saver     Saver
	forgetter Forgetter
	name      string
	active    *atomic.Int64
	now       func() time.Time
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, predictor Predictor, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		predictor: predictor,
		saver:     saver,
		name:      "worker",
		active:    &atomic.Int64{},
		now:       time.Now,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes laps until the queue closes or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	for l := range w.queue.Dequeue(ctx) {
		if err := w.process(ctx, l); err != nil {
			w.logger.Error(ctx, "error processing lap",
				logger.String("lap_id", l.LapID),
				logger.Error(err))
		}
	}
}

// process evaluates one lap and stores the result. Pipeline failures are
// stored as failed laps; only store failures are returned. A lap that did
// not end up stored as ok is released so its id can be retried.
func (w *InMemoryWorker) process(ctx context.Context, l model.Lap) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := w.now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	rec, err := w.predictor.Predict(ctx, l)
	p := model.LapPrediction{
		LapID:       l.LapID,
		LapNumber:   l.Record.LapNumber,
		Compound:    l.Record.Compound,
		SubmittedAt: l.SubmittedAt,
		ProcessedAt: w.now(),
	}
	if err != nil {
		kind := engine.ErrorKind(err)
		metrics.RecordWorkerError(kind)
		w.logger.Warn(ctx, "lap prediction failed",
			logger.String("lap_id", l.LapID),
			logger.String("kind", kind),
			logger.Error(err))
		p.Status = model.StatusFailed
		p.ErrorKind = kind
		p.Error = err.Error()
	} else {
		p.Status = model.StatusOK
		p.Strategy = rec.Strategy
		p.Confidence = rec.Confidence
		p.RiskScore = rec.RiskScore
		p.LapPercentage = rec.LapPercentage
		p.WinnerModel = rec.Decision.Winner.ModelID
		p.Degraded = rec.Decision.Degraded
		p.Reconstructed = rec.Reconstructed
	}

	err = w.saver.Save(ctx, p)
	if (err != nil || p.Status == model.StatusFailed) && w.forgetter != nil {
		w.forgetter.Unrecord(ctx, l.LapID)
	}
	if err != nil {
		metrics.RecordWorkerError("store")
		return fmt.Errorf("save lap %s: %w", l.LapID, err)
	}
	w.logger.Debug(ctx, "lap processed",
		logger.String("lap_id", l.LapID),
		logger.String("status", string(p.Status)),
		logger.String("strategy", p.Strategy))
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates workerCount workers; a non-positive count uses NumCPU.
func NewPool(workerCount int, queue Queue, predictor Predictor, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Nop(),
	}
	active := &atomic.Int64{}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, predictor, saver, wopts...)
		w.active = active
		p.workers[i] = w
	}
	if workerCount > 0 {
		p.logger = p.workers[0].logger
	}
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Shutdown closes the queue, lets workers drain what is already queued and
// cancels them if ctx or the pool timeout expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-timeout.Done():
		if p.cancel != nil {
			p.cancel()
		}
		<-done
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", timeout.Err())
	}
}
