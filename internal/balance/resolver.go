// Package balance resolves a wallet's total balance of the tracked token.
package balance

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"memestats-backend/internal/solana"
)

// Result is the outcome of one wallet resolution. SkippedAccounts counts
// token accounts that could not be converted (missing decimals, unparsable
// raw amount) and were excluded from the sum.
type Result struct {
	Balance         float64
	Accounts        int
	SkippedAccounts int
}

// Resolver sums a wallet's balance across its token accounts for a mint.
// A wallet may own several accounts for the same token; each reports a raw
// integer amount plus a decimals exponent.
type Resolver struct {
	rpc solana.RPCClient
	log logrus.FieldLogger
}

// NewResolver creates a balance resolver.
func NewResolver(rpc solana.RPCClient, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{rpc: rpc, log: log}
}

// Resolve returns the wallet's total balance of the mint.
//
// Accounts whose records omit the decimals exponent are skipped and counted,
// never silently defaulted: a guessed exponent misreports balances by orders
// of magnitude. A failure of the account listing itself is terminal.
func (r *Resolver) Resolve(ctx context.Context, owner, mint string) (Result, error) {
	accounts, err := r.rpc.GetTokenAccountsByOwner(ctx, owner, mint)
	if err != nil {
		return Result{}, fmt.Errorf("list token accounts for %s: %w", owner, err)
	}

	result := Result{Accounts: len(accounts)}
	for _, acct := range accounts {
		value, err := acct.Amount.Value()
		if err != nil {
			result.SkippedAccounts++
			r.log.WithFields(logrus.Fields{
				"owner":   owner,
				"account": acct.Pubkey,
				"error":   err.Error(),
			}).Warn("skipping token account with unusable balance record")
			continue
		}
		result.Balance += value
	}

	return result, nil
}
