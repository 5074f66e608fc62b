// Package priceindex provides pluggable price sources for the tracked token.
package priceindex

import "context"

// Source resolves the current unit price of a token in USD.
type Source interface {
	// TokenPrice returns the current USD price for the mint.
	TokenPrice(ctx context.Context, mint string) (float64, error)
}
