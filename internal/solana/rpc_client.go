package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"mempool-flow/internal/domain"
	"mempool-flow/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 1
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultMaxDelay    = 2 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SimulateTransaction dry-runs a wire transaction and returns its balance snapshot.
// Signature verification is disabled and the blockhash replaced, so pending
// transactions simulate even when their blockhash is about to expire.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, raw []byte) (*domain.BalanceSnapshot, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		map[string]interface{}{
			"encoding":               "base64",
			"sigVerify":              false,
			"replaceRecentBlockhash": true,
			"commitment":             "processed",
		},
	}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil || result.Value.Err != nil {
		return nil, nil
	}

	return &domain.BalanceSnapshot{
		PreTokenBalances:  convertTokenBalances(result.Value.PreTokenBalances),
		PostTokenBalances: convertTokenBalances(result.Value.PostTokenBalances),
		PreBalances:       result.Value.PreBalances,
		PostBalances:      result.Value.PostBalances,
	}, nil
}

func convertTokenBalances(in []rpcTokenBalance) []domain.TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := domain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Owner:        b.Owner,
			Mint:         b.Mint,
		}
		if b.UITokenAmount != nil {
			tb.Amount = b.UITokenAmount.Amount
			tb.Decimals = b.UITokenAmount.Decimals
		}
		out = append(out, tb)
	}
	return out
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}
