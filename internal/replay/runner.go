package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitwall/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes a complete replay and returns ErrViolations when any answer
// is malformed.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}
	log := logger.Get().Named("replay")

	log.Info(ctx, "starting replay",
		logger.String("run_id", stats.RunID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
		logger.Float64("blankRate", cfg.BlankRate))

	client := newHTTPClient(cfg.Timeout, stats.RunID)
	if err := checkServiceHealth(ctx, client, cfg.BaseURL); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	samples := NewGenerator(cfg.Seed, cfg.BlankRate).Generate(cfg.Records)
	if cfg.EdgeCases {
		for _, s := range EdgeCases() {
			s.Index = len(samples)
			samples = append(samples, s)
		}
	}
	stats.Generated = len(samples)

	if cfg.OutputFile != "" {
		if err := saveSamples(cfg.OutputFile, samples); err != nil {
			log.Warn(ctx, "failed to save records", logger.Error(err))
		}
	}

	results, err := submitSamples(ctx, cfg, client, samples)
	if err != nil {
		return stats, err
	}

	violations := Verify(results, stats)
	if cfg.Verbose {
		for _, r := range results {
			if r.Err != nil {
				log.Warn(ctx, "record failed",
					logger.Int("index", r.Sample.Index),
					logger.String("scenario", r.Sample.Scenario),
					logger.String("code", r.ErrorCode),
					logger.Error(r.Err))
			}
		}
	}
	for _, v := range violations {
		log.Error(ctx, "malformed output", logger.Int("index", v.Index), logger.String("reason", v.Reason))
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	if len(violations) > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrViolations, len(violations), stats.Succeeded)
	}
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func saveSamples(path string, samples []Sample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return os.WriteFile(path, data, filePermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.String("run_id", stats.RunID),
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("failed", stats.Failed),
		logger.Int("reconstructed", stats.Reconstructed),
		logger.Any("strategies", stats.Strategies),
		logger.Int("violations", stats.Violations),
		logger.Int("edgeMatches", stats.EdgeMatches),
		logger.Int("edgeCases", stats.EdgeCases),
		logger.Duration("duration", stats.Duration),
		logger.Float64("recordsPerSecond", perSecond))
}
