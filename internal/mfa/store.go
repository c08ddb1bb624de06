package mfa

import (
	"context"
	"sync"
	"time"

	"frootex/backend/internal/mfa/domain"
)

// ChallengeStore holds outstanding challenges by confirmation handle.
// Challenges are transient: they never outlive the process and are discarded
// on successful confirmation, expiry, or replacement.
type ChallengeStore interface {
	// Put stores c, replacing any previous challenge for the same phone so at
	// most one challenge per phone is confirmable at a time.
	Put(ctx context.Context, c *domain.Challenge)
	// Get returns the challenge for handle, or nil if missing or expired.
	Get(ctx context.Context, handle string) *domain.Challenge
	// Delete discards the challenge for handle. No-op when absent.
	Delete(ctx context.Context, handle string)
}

// MemoryStore is an in-memory ChallengeStore.
type MemoryStore struct {
	mu      sync.RWMutex
	byHandle map[string]*domain.Challenge
	byPhone  map[string]string
	nowF     func() time.Time
}

// NewMemoryStore returns an empty in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHandle: make(map[string]*domain.Challenge),
		byPhone:  make(map[string]string),
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Put stores c and evicts any earlier challenge for the same phone.
func (s *MemoryStore) Put(ctx context.Context, c *domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byPhone[c.Phone]; ok {
		delete(s.byHandle, old)
	}
	cp := *c
	s.byHandle[c.Handle] = &cp
	s.byPhone[c.Phone] = c.Handle
}

// Get returns the challenge for handle if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, handle string) *domain.Challenge {
	s.mu.RLock()
	c, ok := s.byHandle[handle]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if !c.ExpiresAt.After(s.nowF()) {
		s.Delete(ctx, handle)
		return nil
	}
	cp := *c
	return &cp
}

// Delete discards the challenge for handle.
func (s *MemoryStore) Delete(ctx context.Context, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byHandle[handle]; ok {
		if s.byPhone[c.Phone] == handle {
			delete(s.byPhone, c.Phone)
		}
		delete(s.byHandle, handle)
	}
}
