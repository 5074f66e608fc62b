package priceindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memestats-backend/internal/upstream"
)

// GeckoTerminal defaults.
const (
	DefaultGeckoBaseURL = "https://api.geckoterminal.com/api/v2"
	DefaultGeckoNetwork = "solana"
	DefaultGeckoTimeout = 10 * time.Second
)

// GeckoClient fetches token prices from the GeckoTerminal simple-price API.
type GeckoClient struct {
	baseURL string
	network string
	client  *http.Client
}

// GeckoOption configures GeckoClient.
type GeckoOption func(*GeckoClient)

// WithGeckoBaseURL overrides the API base URL (used in tests).
func WithGeckoBaseURL(u string) GeckoOption {
	return func(c *GeckoClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithGeckoNetwork sets the network segment of the price path.
func WithGeckoNetwork(network string) GeckoOption {
	return func(c *GeckoClient) {
		c.network = network
	}
}

// WithGeckoHTTPClient sets a custom http.Client.
func WithGeckoHTTPClient(client *http.Client) GeckoOption {
	return func(c *GeckoClient) {
		c.client = client
	}
}

// NewGeckoClient creates a GeckoTerminal price client.
func NewGeckoClient(opts ...GeckoOption) *GeckoClient {
	c := &GeckoClient{
		baseURL: DefaultGeckoBaseURL,
		network: DefaultGeckoNetwork,
		client:  &http.Client{Timeout: DefaultGeckoTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Source = (*GeckoClient)(nil)

// tokenPriceResponse is the simple-price payload shape.
type tokenPriceResponse struct {
	Data struct {
		Attributes struct {
			TokenPrices map[string]string `json:"token_prices"`
		} `json:"attributes"`
	} `json:"data"`
}

// TokenPrice returns the current USD price for the mint.
func (c *GeckoClient) TokenPrice(ctx context.Context, mint string) (float64, error) {
	url := fmt.Sprintf("%s/simple/networks/%s/token_price/%s", c.baseURL, c.network, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, upstream.Unavailable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return 0, upstream.Retryable(fmt.Errorf("price request timeout: %w", err))
		}
		return 0, upstream.Retryable(fmt.Errorf("price request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, upstream.Retryable(fmt.Errorf("rate limited (429)"))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, upstream.Unavailable(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, upstream.Retryable(fmt.Errorf("read response: %w", err))
	}

	var parsed tokenPriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, upstream.Unavailable(fmt.Errorf("unmarshal response: %w", err))
	}

	// Price map keys are lowercased token addresses.
	for addr, priceStr := range parsed.Data.Attributes.TokenPrices {
		if !strings.EqualFold(addr, mint) {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return 0, upstream.Unavailable(fmt.Errorf("parse price %q: %w", priceStr, err))
		}
		return price, nil
	}

	return 0, upstream.Unavailable(fmt.Errorf("no price for mint %s", mint))
}
