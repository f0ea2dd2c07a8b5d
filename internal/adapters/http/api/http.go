// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/telemetry"
	"github.com/okian/pitwall/pkg/logger"
)

// Predictor runs the strategy pipeline synchronously.
type Predictor interface {
	Predict(ctx context.Context, rec telemetry.Record) (engine.Recommendation, error)
}

// LapSubmitter accepts laps for asynchronous evaluation.
type LapSubmitter interface {
	dedupe.Deduper

	// Enqueue pushes a lap for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, l model.Lap) bool
}

// LapReader exposes stored lap predictions.
type LapReader interface {
	Get(ctx context.Context, lapID string) (model.LapPrediction, error)
	List(ctx context.Context, limit int) ([]model.LapPrediction, error)
}

// Defaults for the batch endpoint.
const (
	DefaultMaxBatchSize     = 256
	DefaultBatchConcurrency = 8
)

// Option configures a Server.
type Option func(*Server)

// WithMaxBatchSize caps the number of records in one batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithBatchConcurrency bounds how many batch records are evaluated at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	predictor Predictor
	laps      LapSubmitter
	reader    LapReader

	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	maxBatchSize     int
	batchConcurrency int
	log              logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(predictor Predictor, laps LapSubmitter, reader LapReader, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		predictor:        predictor,
		laps:             laps,
		reader:           reader,
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		maxBatchSize:     DefaultMaxBatchSize,
		batchConcurrency: DefaultBatchConcurrency,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("POST /predict", "predict", s.handlePredict)
	route("POST /predict/batch", "predict_batch", s.handlePredictBatch)
	route("POST /laps", "laps_submit", s.handleSubmitLap)
	route("GET /laps", "laps_list", s.handleListLaps)
	route("GET /laps/{id}", "laps_get", s.handleGetLap)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err, logs server-side failures and writes the body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestID(r.Context())),
			logger.String("code", code),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
