package clickhouse

import (
	"context"
	"fmt"

	"memestats-backend/internal/storage"
)

// StatsHistoryStore implements storage.StatsHistoryStore using ClickHouse.
type StatsHistoryStore struct {
	conn *Conn
}

// NewStatsHistoryStore creates a new StatsHistoryStore.
func NewStatsHistoryStore(conn *Conn) *StatsHistoryStore {
	return &StatsHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StatsHistoryStore = (*StatsHistoryStore)(nil)

// Insert adds a new sample.
func (s *StatsHistoryStore) Insert(ctx context.Context, p *storage.StatsPoint) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stats_history (
			mint, timestamp_ms, price, total_supply, founder_balance,
			burned_balance, circulating_supply, market_cap, holder_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		p.Mint, uint64(p.TimestampMs), p.Price, p.TotalSupply, p.FounderBalance,
		p.BurnedBalance, p.CirculatingSupply, p.MarketCap, uint32(p.HolderCount),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves samples for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *StatsHistoryStore) GetRange(ctx context.Context, mint string, start, end int64) ([]*storage.StatsPoint, error) {
	query := `
		SELECT mint, timestamp_ms, price, total_supply, founder_balance,
		       burned_balance, circulating_supply, market_cap, holder_count
		FROM stats_history
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query stats history range: %w", err)
	}
	defer rows.Close()

	var points []*storage.StatsPoint
	for rows.Next() {
		var p storage.StatsPoint
		var timestampMs uint64
		var holderCount uint32

		err := rows.Scan(
			&p.Mint, &timestampMs, &p.Price, &p.TotalSupply, &p.FounderBalance,
			&p.BurnedBalance, &p.CirculatingSupply, &p.MarketCap, &holderCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stats history row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.HolderCount = int(holderCount)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats history rows: %w", err)
	}

	return points, nil
}
