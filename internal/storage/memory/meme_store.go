package memory

import (
	"context"
	"sort"
	"sync"

	"memestats-backend/internal/storage"
)

// MemeStore is an in-memory implementation of storage.MemeStore.
type MemeStore struct {
	mu   sync.RWMutex
	data map[string]*storage.Meme
}

// NewMemeStore creates a new in-memory meme store.
func NewMemeStore() *MemeStore {
	return &MemeStore{
		data: make(map[string]*storage.Meme),
	}
}

// Compile-time interface check.
var _ storage.MemeStore = (*MemeStore)(nil)

// Insert adds a new meme record. Returns ErrDuplicateKey if the ID exists.
func (s *MemeStore) Insert(_ context.Context, m *storage.Meme) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	memeCopy := *m
	s.data[m.ID] = &memeCopy
	return nil
}

// GetByID retrieves a meme by its ID. Returns ErrNotFound if not exists.
func (s *MemeStore) GetByID(_ context.Context, id string) (*storage.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	memeCopy := *m
	return &memeCopy, nil
}

// List retrieves up to limit memes ordered by upload time descending.
func (s *MemeStore) List(_ context.Context, limit int) ([]*storage.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Meme, 0, len(s.data))
	for _, m := range s.data {
		memeCopy := *m
		result = append(result, &memeCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
