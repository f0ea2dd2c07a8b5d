package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pitwall/pkg/logger"
)

// HTTPClient wraps http.Client with the run's request id.
type HTTPClient struct {
	client *http.Client
	runID  string
}

func newHTTPClient(timeout time.Duration, runID string) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, runID: runID}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url, requestID string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	return c.client.Do(req)
}

// submitSamples posts every sample to /predict with bounded concurrency and
// returns results in sample order.
func submitSamples(ctx context.Context, cfg *Config, client *HTTPClient, samples []Sample) ([]Result, error) {
	log := logger.Get()
	log.Info(ctx, "submitting records", logger.Int("records", len(samples)), logger.Int("workers", cfg.Workers))

	url := cfg.BaseURL + "/predict"
	results := make([]Result, len(samples))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for i, s := range samples {
		g.Go(func() error {
			results[i] = submitSample(gctx, client, url, s)
			if n := done.Add(1); n%1000 == 0 {
				log.Info(gctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(samples)))
			}
			// Only cancellation aborts the run; per-record failures are results.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("submission interrupted: %w", err)
	}
	return results, nil
}

func submitSample(ctx context.Context, client *HTTPClient, url string, s Sample) Result {
	r := Result{Sample: s}
	resp, err := client.Post(ctx, url, fmt.Sprintf("%s-%d", client.runID, s.Index), s.Record)
	if err != nil {
		r.Err = err
		return r
	}
	defer resp.Body.Close()

	r.StatusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.Err = fmt.Errorf("read body: %w", err)
		return r
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &e)
		r.ErrorCode = e.Code
		r.Err = fmt.Errorf("status %d: %s", resp.StatusCode, e.Message)
		return r
	}
	if err := json.Unmarshal(body, &r.Output); err != nil {
		r.Err = fmt.Errorf("decode output: %w", err)
	}
	return r
}
