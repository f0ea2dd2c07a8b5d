package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/pitwall/internal/domain/model"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS lap_predictions (
	lap_id         TEXT PRIMARY KEY,
	lap_number     INTEGER NOT NULL,
	compound       TEXT NOT NULL,
	status         TEXT NOT NULL,
	strategy       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	lap_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	winner_model   TEXT NOT NULL DEFAULT '',
	degraded       BOOLEAN NOT NULL DEFAULT FALSE,
	reconstructed  TEXT[] NOT NULL DEFAULT '{}',
	error_kind     TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	submitted_at   TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS lap_predictions_lap_number_idx ON lap_predictions (lap_number, lap_id);`

const upsertSQL = `INSERT INTO lap_predictions (
	lap_id, lap_number, compound, status, strategy, confidence, risk_score, lap_percentage,
	winner_model, degraded, reconstructed, error_kind, error, submitted_at, processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (lap_id) DO UPDATE SET
	lap_number = EXCLUDED.lap_number,
	compound = EXCLUDED.compound,
	status = EXCLUDED.status,
	strategy = EXCLUDED.strategy,
	confidence = EXCLUDED.confidence,
	risk_score = EXCLUDED.risk_score,
	lap_percentage = EXCLUDED.lap_percentage,
	winner_model = EXCLUDED.winner_model,
	degraded = EXCLUDED.degraded,
	reconstructed = EXCLUDED.reconstructed,
	error_kind = EXCLUDED.error_kind,
	error = EXCLUDED.error,
	submitted_at = EXCLUDED.submitted_at,
	processed_at = EXCLUDED.processed_at`

const selectColumns = `SELECT lap_id, lap_number, compound, status, strategy, confidence, risk_score,
	lap_percentage, winner_model, degraded, reconstructed, error_kind, error, submitted_at, processed_at
FROM lap_predictions`

// PostgresStore persists predictions in a lap_predictions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects with the lib/pq driver and creates the table if
// it does not exist.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: empty dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	s, err := newPostgresStoreFromDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresStoreFromDB checks the pool and creates the schema. The store
// owns db afterwards.
func newPostgresStoreFromDB(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save implements Store.Save.
func (s *PostgresStore) Save(ctx context.Context, p model.LapPrediction) error {
	if p.LapID == "" {
		return ErrInvalidLap
	}
	start := time.Now()
	defer observe("save", start)

	reconstructed := p.Reconstructed
	if reconstructed == nil {
		reconstructed = []string{}
	}
	_, err := s.db.ExecContext(ctx, upsertSQL,
		p.LapID, p.LapNumber, p.Compound, string(p.Status), p.Strategy, p.Confidence, p.RiskScore,
		p.LapPercentage, p.WinnerModel, p.Degraded, pq.Array(reconstructed), p.ErrorKind, p.Error,
		p.SubmittedAt.UTC(), p.ProcessedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres store: save %s: %w", p.LapID, err)
	}
	return nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, lapID string) (model.LapPrediction, error) {
	start := time.Now()
	defer observe("get", start)

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE lap_id = $1`, lapID)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LapPrediction{}, ErrNotFound
	}
	if err != nil {
		return model.LapPrediction{}, fmt.Errorf("postgres store: get %s: %w", lapID, err)
	}
	return p, nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.LapPrediction, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	start := time.Now()
	defer observe("list", start)

	query := selectColumns + ` ORDER BY lap_number, lap_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	defer rows.Close()

	var out []model.LapPrediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: list: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lap_predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(r scanner) (model.LapPrediction, error) {
	var (
		p      model.LapPrediction
		status string
		recon  []string
	)
	err := r.Scan(&p.LapID, &p.LapNumber, &p.Compound, &status, &p.Strategy, &p.Confidence,
		&p.RiskScore, &p.LapPercentage, &p.WinnerModel, &p.Degraded, pq.Array(&recon),
		&p.ErrorKind, &p.Error, &p.SubmittedAt, &p.ProcessedAt)
	if err != nil {
		return model.LapPrediction{}, err
	}
	p.Status = model.Status(status)
	if len(recon) > 0 {
		p.Reconstructed = recon
	}
	return p, nil
}
