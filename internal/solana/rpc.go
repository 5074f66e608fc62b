package solana

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// RPCClient defines the Solana RPC operations used by the stats pipeline.
type RPCClient interface {
	// GetTokenSupply retrieves the total minted supply of a token mint.
	GetTokenSupply(ctx context.Context, mint string) (TokenAmount, error)

	// GetTokenAccountsByOwner retrieves all token accounts for the mint
	// owned by the given wallet.
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error)
}

// TokenAmount is a raw on-chain amount plus its decimals exponent.
// Decimals is a pointer because parsed account data may omit it; callers
// must handle that case explicitly rather than assuming an exponent.
type TokenAmount struct {
	Amount   string
	Decimals *int
}

// TokenAccount is a single token-holding account owned by a wallet.
type TokenAccount struct {
	Pubkey string
	Amount TokenAmount
}

// MissingDecimalsError is returned by Value when the decimals exponent is
// absent from the upstream record.
type MissingDecimalsError struct {
	Pubkey string
}

func (e *MissingDecimalsError) Error() string {
	return fmt.Sprintf("account %q: token amount missing decimals exponent", e.Pubkey)
}

// Value converts the raw integer amount into human-readable units
// (raw / 10^decimals). It fails rather than guessing when decimals is
// missing or the raw amount does not parse.
func (a TokenAmount) Value() (float64, error) {
	if a.Decimals == nil {
		return 0, &MissingDecimalsError{}
	}
	raw, err := strconv.ParseFloat(a.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse raw amount %q: %w", a.Amount, err)
	}
	return raw / math.Pow(10, float64(*a.Decimals)), nil
}
