package api

import (
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pitwall/internal/domain/engine"
	"github.com/okian/pitwall/internal/domain/telemetry"
)

var errEmptyBatch = errors.New("records must not be empty")

type batchRequest struct {
	Records []telemetry.Record `json:"records"`
}

type batchItem struct {
	Index  int            `json:"index"`
	Output *engine.Output `json:"output,omitempty"`
	Error  *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Results   []batchItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// handlePredict handles POST /predict. With ?explain=true the full
// recommendation, including both model predictions, is returned.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	var rec telemetry.Record
	if err := decodeJSON(r, &rec); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := s.predictor.Predict(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if explain, _ := strconv.ParseBool(r.URL.Query().Get("explain")); explain {
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeJSON(w, http.StatusOK, out.Output)
}

// handlePredictBatch handles POST /predict/batch. Records are evaluated
// concurrently; one failing record does not fail the others.
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict_batch"
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	switch {
	case len(req.Records) == 0:
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errEmptyBatch))
		return
	case len(req.Records) > s.maxBatchSize:
		s.writeError(w, r, NewKind(op, ErrBatchTooLarge))
		return
	}

	results := make([]batchItem, len(req.Records))
	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, rec := range req.Records {
		g.Go(func() error {
			item := batchItem{Index: i}
			out, err := s.predictor.Predict(r.Context(), rec)
			if err != nil {
				_, code := classify(err)
				item.Error = &errorResponse{Code: code, Message: err.Error()}
			} else {
				item.Output = &out.Output
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	resp := batchResponse{Results: results}
	for _, it := range results {
		if it.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
