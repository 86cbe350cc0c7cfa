// Package watermark persists the last successfully read event id per
// dataset, so polling resumes where it left off across restarts.
package watermark

import (
	"context"
	"sync"
)

// Store loads and saves watermarks. The empty string means "never read".
type Store interface {
	Load(ctx context.Context, dataset string) (string, error)
	Save(ctx context.Context, dataset, id string) error
}

// MemStore keeps watermarks in memory. Used in tests and when the engine
// runs without Redis.
type MemStore struct {
	mu    sync.Mutex
	marks map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{marks: make(map[string]string)}
}

// Load implements Store.
func (s *MemStore) Load(ctx context.Context, dataset string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[dataset], nil
}

// Save implements Store.
func (s *MemStore) Save(ctx context.Context, dataset, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[dataset] = id
	return nil
}
