package priceindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"

	"memestats-backend/internal/upstream"
)

// lister is the slice of the Binance client used here, extracted so tests
// can substitute a fake without hitting the exchange.
type lister interface {
	ListPrices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error)
}

// binanceLister adapts *binance.Client to the lister interface.
type binanceLister struct {
	client *binance.Client
}

func (l *binanceLister) ListPrices(ctx context.Context, symbol string) ([]*binance.SymbolPrice, error) {
	return l.client.NewListPricesService().Symbol(symbol).Do(ctx)
}

// BinanceSource resolves the token price from a Binance spot symbol
// (e.g. a USDT pair). The mint argument is ignored: centralized exchanges
// key prices by listed symbol, not by on-chain address.
type BinanceSource struct {
	symbol string
	lister lister
}

// NewBinanceSource creates a price source backed by the Binance spot API.
func NewBinanceSource(apiKey, secretKey, symbol string) *BinanceSource {
	return &BinanceSource{
		symbol: symbol,
		lister: &binanceLister{client: binance.NewClient(apiKey, secretKey)},
	}
}

var _ Source = (*BinanceSource)(nil)

// TokenPrice returns the latest listed price for the configured symbol.
func (s *BinanceSource) TokenPrice(ctx context.Context, _ string) (float64, error) {
	prices, err := s.lister.ListPrices(ctx, s.symbol)
	if err != nil {
		if isBinanceRateLimit(err) {
			return 0, upstream.Retryable(fmt.Errorf("binance rate limited: %w", err))
		}
		return 0, upstream.Retryable(fmt.Errorf("binance list prices: %w", err))
	}

	for _, p := range prices {
		if p.Symbol != s.symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, upstream.Unavailable(fmt.Errorf("parse binance price %q: %w", p.Price, err))
		}
		return price, nil
	}

	return 0, upstream.Unavailable(fmt.Errorf("no listed price for symbol %s", s.symbol))
}

func isBinanceRateLimit(err error) bool {
	// The SDK surfaces HTTP 429 / -1003 as plain errors; match on text.
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "-1003")
}
