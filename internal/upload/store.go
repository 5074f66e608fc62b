package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ObjectStore persists an uploaded payload and returns a URL it can later be
// served from.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// extensions maps accepted content types to file extensions.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FSStore writes payloads to a directory with uuid-derived names.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates an FSStore rooted at dir. Served URLs are baseURL plus
// the generated file name.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSStore{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Compile-time interface check.
var _ ObjectStore = (*FSStore)(nil)

// Store writes data to a new file and returns its public URL.
func (s *FSStore) Store(_ context.Context, data []byte, contentType string) (string, error) {
	name := uuid.NewString() + extensions[contentType]
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}

	return s.baseURL + "/" + name, nil
}

// MemoryStore keeps payloads in memory, for tests and ephemeral deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Compile-time interface check.
var _ ObjectStore = (*MemoryStore)(nil)

// Store keeps a copy of data and returns a synthetic URL.
func (s *MemoryStore) Store(_ context.Context, data []byte, contentType string) (string, error) {
	name := uuid.NewString() + extensions[contentType]

	s.mu.Lock()
	defer s.mu.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	s.objects[name] = dataCopy

	return "memory://" + name, nil
}

// Get returns a stored payload by the name portion of its URL.
func (s *MemoryStore) Get(url string) ([]byte, bool) {
	name := strings.TrimPrefix(url, "memory://")

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	return data, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
