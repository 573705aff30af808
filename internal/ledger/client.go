// Package ledger provides JSON-RPC access to the object ledger full node.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/jobboard/internal/metrics"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// Client provides ledger RPC functionality. It is safe for concurrent use and
// meant to be shared by every reader.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
	// RequestsPerSecond caps the call rate across all goroutines sharing the
	// client. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Logger            *logger.Logger
}

// NewClient creates a new ledger client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("ledger")
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		log:     log,
	}, nil
}

// =============================================================================
// Core RPC Methods
// =============================================================================

// Call makes an RPC call to the ledger node.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.call(ctx, method, params)
	metrics.RecordRPC(method, time.Since(start), err)
	return result, err
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		c.log.WithField("method", method).WithField("request_id", req.ID).
			WithField("code", rpcResp.Error.Code).Debug("ledger rpc error")
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetChainIdentifier returns the network's chain identifier.
func (c *Client) GetChainIdentifier(ctx context.Context) (string, error) {
	result, err := c.Call(ctx, "sui_getChainIdentifier")
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(result, &id); err != nil {
		return "", fmt.Errorf("unmarshal chain identifier: %w", err)
	}
	return id, nil
}
