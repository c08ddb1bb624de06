// Package devotp provides an in-memory store for plaintext OTPs by
// confirmation handle, used only when dev OTP mode is enabled
// (GET /dev/otp). Never used in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTPs for dev-only retrieval.
type Store interface {
	// Put stores otp for handle until expiresAt.
	Put(ctx context.Context, handle, otp string, expiresAt time.Time)
	// Get returns the otp for handle if present and not expired.
	Get(ctx context.Context, handle string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores otp for handle until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, handle, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[handle] = entry{otp: otp, expiresAt: expiresAt}
}

// Get returns the otp for handle if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, handle string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[handle]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, handle)
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}
