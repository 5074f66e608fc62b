// Package holders counts distinct wallet addresses holding a positive
// balance of the tracked token.
package holders

import (
	"context"
	"fmt"

	"memestats-backend/internal/indexer"
)

// DefaultPageSize is the indexer page size used for enumeration.
const DefaultPageSize = 1000

// Enumerator pages through the indexing service and deduplicates owners.
// One wallet can own several token accounts for the same mint, so the
// account count overstates the holder count; the owner set corrects that.
//
// Page count is unbounded by anything but upstream data size: a very large
// holder base means a long enumeration. The caller bounds each cycle with
// its fetch timeout.
type Enumerator struct {
	client   indexer.Client
	pageSize int
}

// NewEnumerator creates a holder enumerator. pageSize <= 0 selects the
// default.
func NewEnumerator(client indexer.Client, pageSize int) *Enumerator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Enumerator{client: client, pageSize: pageSize}
}

// Count returns the number of distinct owners with a positive balance.
// Any page failure aborts the cycle; no partial count is returned.
func (e *Enumerator) Count(ctx context.Context, mint string) (int, error) {
	owners := make(map[string]struct{})

	for page := 1; ; page++ {
		accounts, err := e.client.TokenAccountsPage(ctx, mint, page, e.pageSize)
		if err != nil {
			return 0, fmt.Errorf("enumerate holders page %d: %w", page, err)
		}

		for _, acct := range accounts {
			if acct.Owner == "" || acct.Amount <= 0 {
				continue
			}
			owners[acct.Owner] = struct{}{}
		}

		// A short or empty page is the end of the data.
		if len(accounts) < e.pageSize {
			break
		}
	}

	return len(owners), nil
}
