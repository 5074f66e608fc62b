package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"memestats-backend/internal/upstream"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 15 * time.Second

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
//
// Each call is a single attempt: retry policy belongs to the caller
// (internal/retry), so it stays visible at the call site instead of being
// hidden inside the transport. Failures are classified via internal/upstream.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
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
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ RPCClient = (*HTTPClient)(nil)

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

// call performs one JSON-RPC round trip and classifies any failure.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return upstream.Unavailable(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return upstream.Unavailable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return upstream.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return upstream.Retryable(fmt.Errorf("rate limited (429)"))
	}
	if resp.StatusCode != http.StatusOK {
		return upstream.Unavailable(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return upstream.Unavailable(fmt.Errorf("unmarshal response: %w", err))
	}

	if rpcResp.Error != nil {
		return upstream.Unavailable(rpcResp.Error)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return upstream.Unavailable(fmt.Errorf("unmarshal result: %w", err))
		}
	}

	return nil
}

// classifyTransportError maps network-level failures. Timeouts and
// connection errors are transient; anything else is terminal.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return upstream.Retryable(fmt.Errorf("http request timeout: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return upstream.Retryable(fmt.Errorf("http request timeout: %w", err))
	}
	return upstream.Retryable(fmt.Errorf("http request: %w", err))
}

// tokenAmountResult is the raw RPC token amount object.
type tokenAmountResult struct {
	Amount   string `json:"amount"`
	Decimals *int   `json:"decimals"`
}

// getTokenSupplyResult is the raw RPC response for getTokenSupply.
type getTokenSupplyResult struct {
	Value tokenAmountResult `json:"value"`
}

// GetTokenSupply retrieves the total minted supply of a token mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (TokenAmount, error) {
	params := []interface{}{mint}

	var result getTokenSupplyResult
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		return TokenAmount{}, err
	}

	if result.Value.Amount == "" {
		return TokenAmount{}, upstream.Unavailable(fmt.Errorf("empty supply for mint %s", mint))
	}

	return TokenAmount{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
	}, nil
}

// getTokenAccountsResult is the raw RPC response for getTokenAccountsByOwner
// with jsonParsed encoding.
type getTokenAccountsResult struct {
	Value []getTokenAccountEntry `json:"value"`
}

type getTokenAccountEntry struct {
	Pubkey  string                 `json:"pubkey"`
	Account getTokenAccountWrapper `json:"account"`
}

type getTokenAccountWrapper struct {
	Data getTokenAccountData `json:"data"`
}

type getTokenAccountData struct {
	Parsed getTokenAccountParsed `json:"parsed"`
}

type getTokenAccountParsed struct {
	Info getTokenAccountInfo `json:"info"`
}

type getTokenAccountInfo struct {
	TokenAmount *tokenAmountResult `json:"tokenAmount"`
}

// GetTokenAccountsByOwner retrieves all token accounts for the mint owned
// by the given wallet. Accounts whose parsed data omits the token amount
// are returned with a zero raw amount and nil decimals so the caller can
// decide how to handle them.
func (c *HTTPClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result getTokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, entry := range result.Value {
		acct := TokenAccount{Pubkey: entry.Pubkey}
		if ta := entry.Account.Data.Parsed.Info.TokenAmount; ta != nil {
			acct.Amount = TokenAmount{
				Amount:   ta.Amount,
				Decimals: ta.Decimals,
			}
		}
		accounts = append(accounts, acct)
	}

	return accounts, nil
}
