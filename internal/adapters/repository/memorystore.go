package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// MemoryStore keeps predictions in a map guarded by a RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	byLap map[string]model.LapPrediction

	metricsUpdateInterval time.Duration
	stopChan              chan struct{}
	stopOnce              sync.Once
	wg                    sync.WaitGroup
}

// NewMemoryStore creates a store and starts its metrics updater, which stops
// on Close or when ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byLap:                 make(map[string]model.LapPrediction),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Save implements Store.Save.
func (s *MemoryStore) Save(_ context.Context, p model.LapPrediction) error {
	if p.LapID == "" {
		return ErrInvalidLap
	}
	start := time.Now()
	defer observe("save", start)

	p.Reconstructed = slices.Clone(p.Reconstructed)
	s.mu.Lock()
	s.byLap[p.LapID] = p
	s.mu.Unlock()
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, lapID string) (model.LapPrediction, error) {
	start := time.Now()
	defer observe("get", start)

	s.mu.RLock()
	p, ok := s.byLap[lapID]
	s.mu.RUnlock()
	if !ok {
		return model.LapPrediction{}, ErrNotFound
	}
	p.Reconstructed = slices.Clone(p.Reconstructed)
	return p, nil
}

// List implements Store.List.
func (s *MemoryStore) List(_ context.Context, limit int) ([]model.LapPrediction, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	start := time.Now()
	defer observe("list", start)

	s.mu.RLock()
	out := make([]model.LapPrediction, 0, len(s.byLap))
	for _, p := range s.byLap {
		p.Reconstructed = slices.Clone(p.Reconstructed)
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.LapPrediction) int {
		if c := cmp.Compare(a.LapNumber, b.LapNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.LapID, b.LapID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byLap), nil
}

// Close stops the metrics updater. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateLapsStored(n)
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
