package memory

import (
	"context"
	"sort"
	"sync"

	"memestats-backend/internal/storage"
)

// StatsHistoryStore is an in-memory implementation of storage.StatsHistoryStore.
type StatsHistoryStore struct {
	mu   sync.RWMutex
	data []*storage.StatsPoint
}

// NewStatsHistoryStore creates a new in-memory stats history store.
func NewStatsHistoryStore() *StatsHistoryStore {
	return &StatsHistoryStore{}
}

// Compile-time interface check.
var _ storage.StatsHistoryStore = (*StatsHistoryStore)(nil)

// Insert adds a new sample.
func (s *StatsHistoryStore) Insert(_ context.Context, p *storage.StatsPoint) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pointCopy := *p
	s.data = append(s.data, &pointCopy)
	return nil
}

// GetRange retrieves samples for a mint within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *StatsHistoryStore) GetRange(_ context.Context, mint string, start, end int64) ([]*storage.StatsPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.StatsPoint
	for _, p := range s.data {
		if p.Mint == mint && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
