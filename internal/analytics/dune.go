package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/circuitbreaker"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
	"github.com/duffmahn/hummingbot-track-a/internal/ratelimit"
	"github.com/duffmahn/hummingbot-track-a/internal/retry"
)

// DuneClient calls a Dune-style HTTP API. Every request is a POST of
// {method, params}; the response body is {rows: [...]} or {error: "..."}.
type DuneClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
}

type duneRequest struct {
	Method string            `json:"method"`
	Params map[string]string `json:"params,omitempty"`
}

type duneResponse struct {
	Rows  Rows   `json:"rows"`
	Error string `json:"error,omitempty"`
}

func NewDuneClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *DuneClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuneClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "dune_client"),
	}
}

// SetRateLimiter installs the backend rate limiter.
func (c *DuneClient) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetBreaker installs the backend circuit breaker.
func (c *DuneClient) SetBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

func (c *DuneClient) Query(ctx context.Context, method string, params map[string]string) (Rows, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			metrics.BackendCallsTotal.WithLabelValues(method, "rejected").Inc()
			return nil, retry.Terminal(err)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	rows, err := c.post(ctx, method, params)
	c.recordOutcome(method, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *DuneClient) post(ctx context.Context, method string, params map[string]string) (Rows, error) {
	body, err := json.Marshal(duneRequest{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/query/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Dune-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query %s: http status %d: %s", method, resp.StatusCode, truncate(respBody, 256))
	}

	var decoded duneResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("query %s: %s", method, decoded.Error)
	}
	return decoded.Rows, nil
}

func (c *DuneClient) recordOutcome(method string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
	} else if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	metrics.BackendCallsTotal.WithLabelValues(method, status).Inc()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
