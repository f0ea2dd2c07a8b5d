package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/telemetry"
)

// lapRequest is a telemetry record plus an optional idempotency key.
type lapRequest struct {
	LapID string `json:"lap_id"`
	telemetry.Record
}

type ackResponse struct {
	Status    string `json:"status"`
	LapID     string `json:"lap_id"`
	Duplicate bool   `json:"duplicate"`
}

type lapsResponse struct {
	Laps  []model.LapPrediction `json:"laps"`
	Count int                   `json:"count"`
}

// handleSubmitLap handles POST /laps.
func (s *Server) handleSubmitLap(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_lap"
	var req lapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.Record.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	lapID := strings.TrimSpace(req.LapID)
	if lapID == "" {
		lapID = model.DefaultLapID(req.LapNumber)
	}

	// Idempotency check - mark as seen first
	if s.laps.SeenAndRecord(r.Context(), lapID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", LapID: lapID, Duplicate: true})
		return
	}

	lap := model.Lap{
		LapID:       lapID,
		Record:      req.Record.Clone(),
		RequestID:   RequestID(r.Context()),
		SubmittedAt: time.Now().UTC(),
	}
	if ok := s.laps.Enqueue(r.Context(), lap); !ok {
		// Rollback the "seen" status since enqueue failed
		s.laps.Unrecord(r.Context(), lapID)
		s.writeError(w, r, NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", LapID: lapID})
}

// handleListLaps handles GET /laps?limit=N.
func (s *Server) handleListLaps(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_laps"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	laps, err := s.reader.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if laps == nil {
		laps = []model.LapPrediction{}
	}
	writeJSON(w, http.StatusOK, lapsResponse{Laps: laps, Count: len(laps)})
}

// handleGetLap handles GET /laps/{id}.
func (s *Server) handleGetLap(w http.ResponseWriter, r *http.Request) {
	p, err := s.reader.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
