package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps the token pair in process memory. It does not survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.Get
func (s *MemoryStore) Get(ctx context.Context, kind Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case AccessToken:
		return s.access, nil
	case RefreshToken:
		return s.refresh, nil
	default:
		_, err := kind.Key()
		return "", err
	}
}

// Set implements Store.Set
func (s *MemoryStore) Set(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()
	return nil
}

// SetAccess implements Store.SetAccess
func (s *MemoryStore) SetAccess(ctx context.Context, access string) error {
	s.mu.Lock()
	s.access = access
	s.mu.Unlock()
	return nil
}

// Clear implements Store.Clear
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.access, s.refresh = "", ""
	s.mu.Unlock()
	return nil
}
