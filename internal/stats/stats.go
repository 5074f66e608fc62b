// Package stats builds the token statistics snapshot from external data
// sources and caches it.
package stats

import (
	"fmt"
	"math"
	"time"
)

// ConservationTolerance absorbs rounding between independently sourced
// quantities. One whole token unit.
const ConservationTolerance = 1.0

// TokenStats is one immutable statistics snapshot. All supply-like values
// are in human-readable token units (post decimal scaling); all *Value
// fields and MarketCap are in USD.
type TokenStats struct {
	Price             float64   `json:"price"`
	TotalSupply       float64   `json:"totalSupply"`
	FounderBalance    float64   `json:"founderBalance"`
	BurnedBalance     float64   `json:"burnedBalance"`
	CirculatingSupply float64   `json:"circulatingSupply"`
	HolderCount       int       `json:"holderCount"`
	MarketCap         float64   `json:"marketCap"`
	TotalValue        float64   `json:"totalValue"`
	FounderValue      float64   `json:"founderValue"`
	BurnedValue       float64   `json:"burnedValue"`
	BurnRate          float64   `json:"burnRate"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// Inputs are the independently fetched quantities a snapshot derives from.
type Inputs struct {
	Price          float64
	TotalSupply    float64
	FounderBalance float64
	BurnedBalance  float64
	HolderCount    int
}

// Compute derives the full snapshot from resolved inputs.
func Compute(in Inputs, now time.Time) TokenStats {
	circulating := in.TotalSupply - in.FounderBalance - in.BurnedBalance
	if circulating < 0 {
		circulating = 0
	}

	burnRate := 0.0
	if in.TotalSupply > 0 {
		burnRate = in.BurnedBalance / in.TotalSupply * 100
	}

	return TokenStats{
		Price:             in.Price,
		TotalSupply:       in.TotalSupply,
		FounderBalance:    in.FounderBalance,
		BurnedBalance:     in.BurnedBalance,
		CirculatingSupply: circulating,
		HolderCount:       in.HolderCount,
		MarketCap:         circulating * in.Price,
		TotalValue:        in.TotalSupply * in.Price,
		FounderValue:      in.FounderBalance * in.Price,
		BurnedValue:       in.BurnedBalance * in.Price,
		BurnRate:          burnRate,
		LastUpdated:       now,
	}
}

// InvariantViolationError reports a failed supply conservation check. It is
// a data-quality signal, not a processing failure: sources are independent
// and not guaranteed perfectly consistent, so callers log it and proceed.
type InvariantViolationError struct {
	Discrepancy float64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("supply conservation violated: |founder + burned + circulating - total| = %g exceeds tolerance %g",
		e.Discrepancy, ConservationTolerance)
}

// CheckConservation validates founder + burned + circulating ≈ total within
// ConservationTolerance. Returns nil when the books balance.
func CheckConservation(s TokenStats) error {
	discrepancy := math.Abs(s.FounderBalance + s.BurnedBalance + s.CirculatingSupply - s.TotalSupply)
	if discrepancy > ConservationTolerance {
		return &InvariantViolationError{Discrepancy: discrepancy}
	}
	return nil
}
