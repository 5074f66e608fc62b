package stub

import (
	"context"
	"errors"
	"sync/atomic"

	"memestats-backend/internal/solana"
)

// ErrNotConfigured is returned when the stub has no data for a request.
var ErrNotConfigured = errors.New("stub: not configured")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Supplies map[string]solana.TokenAmount
	Accounts map[string][]solana.TokenAccount // keyed by owner

	// SupplyErr / AccountsErr force failures when set.
	SupplyErr   error
	AccountsErr error

	// SupplyCalls counts GetTokenSupply invocations (for single-flight tests).
	SupplyCalls atomic.Int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Supplies: make(map[string]solana.TokenAmount),
		Accounts: make(map[string][]solana.TokenAccount),
	}
}

// GetTokenSupply returns the configured supply for the mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (solana.TokenAmount, error) {
	c.SupplyCalls.Add(1)
	if c.SupplyErr != nil {
		return solana.TokenAmount{}, c.SupplyErr
	}
	supply, ok := c.Supplies[mint]
	if !ok {
		return solana.TokenAmount{}, ErrNotConfigured
	}
	return supply, nil
}

// GetTokenAccountsByOwner returns the configured accounts for the owner.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, _ string) ([]solana.TokenAccount, error) {
	if c.AccountsErr != nil {
		return nil, c.AccountsErr
	}
	return c.Accounts[owner], nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
