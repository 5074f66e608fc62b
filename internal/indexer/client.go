// Package indexer wraps the wallet/holder indexing service used for
// holder enumeration.
package indexer

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

// Default configuration values.
const (
	DefaultTimeout = 15 * time.Second
)

// HolderAccount is one token account row from the indexing service.
type HolderAccount struct {
	Address string  `json:"address"`
	Owner   string  `json:"owner"`
	Amount  float64 `json:"amount"`
}

// Client lists token accounts for a mint, page by page.
type Client interface {
	// TokenAccountsPage returns one page of token accounts for the mint.
	// Pages are 1-based. A short or empty page marks the end of the data.
	TokenAccountsPage(ctx context.Context, mint string, page, limit int) ([]HolderAccount, error)
}

// HTTPClient implements Client against a Helius-style getTokenAccounts API.
type HTTPClient struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	requestID atomic.Uint64
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new indexing service client.
func NewHTTPClient(endpoint, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type tokenAccountsRequest struct {
	JSONRPC string                     `json:"jsonrpc"`
	ID      uint64                     `json:"id"`
	Method  string                     `json:"method"`
	Params  tokenAccountsRequestParams `json:"params"`
}

type tokenAccountsRequestParams struct {
	Mint  string `json:"mint"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

type tokenAccountsResponse struct {
	Result *tokenAccountsResult `json:"result"`
	Error  *indexerError        `json:"error"`
}

type tokenAccountsResult struct {
	TokenAccounts []HolderAccount `json:"token_accounts"`
}

type indexerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *indexerError) Error() string {
	return fmt.Sprintf("indexer error %d: %s", e.Code, e.Message)
}

// TokenAccountsPage returns one page of token accounts for the mint.
func (c *HTTPClient) TokenAccountsPage(ctx context.Context, mint string, page, limit int) ([]HolderAccount, error) {
	reqBody := tokenAccountsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "getTokenAccounts",
		Params: tokenAccountsRequestParams{
			Mint:  mint,
			Page:  page,
			Limit: limit,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, upstream.Unavailable(fmt.Errorf("marshal request: %w", err))
	}

	url := c.endpoint
	if c.apiKey != "" {
		url = fmt.Sprintf("%s?api-key=%s", c.endpoint, c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, upstream.Unavailable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, upstream.Retryable(fmt.Errorf("indexer request timeout: %w", err))
		}
		return nil, upstream.Retryable(fmt.Errorf("indexer request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstream.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, upstream.Retryable(fmt.Errorf("rate limited (429)"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstream.Unavailable(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed tokenAccountsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, upstream.Unavailable(fmt.Errorf("unmarshal response: %w", err))
	}

	if parsed.Error != nil {
		return nil, upstream.Unavailable(parsed.Error)
	}
	if parsed.Result == nil {
		return nil, nil
	}

	return parsed.Result.TokenAccounts, nil
}
