package gateway

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
)

const (
	poolInfoCacheSize = 32
	poolInfoCacheTTL  = 30 * time.Second
)

// HTTPClient talks to a gateway daemon over JSON HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	breaker    *circuitbreaker.Breaker
	poolCache  *poolInfoCache
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger.With("component", "gateway"),
		poolCache:  newPoolInfoCache(poolInfoCacheSize, poolInfoCacheTTL),
	}
}

// SetBreaker installs the gateway circuit breaker.
func (c *HTTPClient) SetBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

func (c *HTTPClient) PoolInfo(ctx context.Context, chain, network, connector, pool string) (*PoolInfo, error) {
	cacheKey := chain + "|" + network + "|" + connector + "|" + pool
	if info, ok := c.poolCache.get(cacheKey); ok {
		return info, nil
	}

	var info PoolInfo
	err := c.call(ctx, "pool-info", map[string]any{
		"chain":        chain,
		"network":      network,
		"connector":    connector,
		"pool_address": pool,
	}, &info)
	if err != nil {
		return nil, err
	}
	c.poolCache.put(cacheKey, &info)
	return &info, nil
}

func (c *HTTPClient) QuotePosition(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	var result QuoteResult
	if err := c.call(ctx, "quote-position", req, &result); err != nil {
		return nil, err
	}
	result.Source = "live"
	return &result, nil
}

func (c *HTTPClient) OpenPosition(ctx context.Context, req QuoteRequest) (*TxReceipt, error) {
	var receipt TxReceipt
	if err := c.call(ctx, "open-position", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) ClosePosition(ctx context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error) {
	var receipt TxReceipt
	err := c.call(ctx, "close-position", map[string]any{
		"chain":     chain,
		"network":   network,
		"connector": connector,
		"token_id":  tokenID,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) CollectFees(ctx context.Context, chain, network, connector string, tokenID int64) (*TxReceipt, error) {
	var receipt TxReceipt
	err := c.call(ctx, "collect-fees", map[string]any{
		"chain":     chain,
		"network":   network,
		"connector": connector,
		"token_id":  tokenID,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Health probes the gateway with a bounded deadline independent of the
// client's request timeout.
func (c *HTTPClient) Health(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues("health", "error").Inc()
		return fmt.Errorf("gateway health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.GatewayCallsTotal.WithLabelValues("health", "error").Inc()
		return fmt.Errorf("gateway health: http status %d", resp.StatusCode)
	}
	metrics.GatewayCallsTotal.WithLabelValues("health", "ok").Inc()
	return nil
}

func (c *HTTPClient) call(ctx context.Context, route string, payload, out any) error {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			metrics.GatewayCallsTotal.WithLabelValues(route, "rejected").Inc()
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", route, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", route, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordOutcome(route, err)
		return fmt.Errorf("gateway %s: %w", route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(route, err)
		return fmt.Errorf("read %s response: %w", route, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gateway %s: http status %d", route, resp.StatusCode)
		c.recordOutcome(route, err)
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.recordOutcome(route, err)
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	c.recordOutcome(route, nil)
	return nil
}

func (c *HTTPClient) recordOutcome(route string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
	} else if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	metrics.GatewayCallsTotal.WithLabelValues(route, status).Inc()
}
