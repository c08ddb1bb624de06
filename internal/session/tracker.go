// Package session tracks the current authenticated principal for the
// lifetime of the process by observing identity-provider auth-state changes.
package session

import (
	"sync"

	"frootex/backend/internal/identity"
	"frootex/backend/internal/identity/domain"
)

// Tracker holds the provider's auth state and fans it out to subscribers.
// It registers exactly one listener with the provider and is a pure
// observer: the provider owns reconnection and session persistence.
type Tracker struct {
	mu          sync.Mutex
	current     *domain.Principal
	subscribers map[int]func(*domain.Principal)
	nextID      int
	unobserve   func()
}

// NewTracker returns a Tracker listening on provider. Callers must Close it
// on teardown to release the provider's listener.
func NewTracker(provider identity.Provider) *Tracker {
	t := &Tracker{subscribers: make(map[int]func(*domain.Principal))}
	t.unobserve = provider.ObserveAuthState(t.onChange)
	return t
}

// Current returns the current principal, or nil when signed out.
func (t *Tracker) Current() *domain.Principal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subscribe registers onChange and invokes it synchronously with the current
// state, then on every subsequent sign-in and sign-out. The returned
// unsubscribe is idempotent.
func (t *Tracker) Subscribe(onChange func(*domain.Principal)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subscribers[id] = onChange
	current := t.current
	t.mu.Unlock()

	onChange(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
		})
	}
}

// Close detaches the tracker from the provider. Idempotent.
func (t *Tracker) Close() {
	t.mu.Lock()
	unobserve := t.unobserve
	t.unobserve = nil
	t.mu.Unlock()
	if unobserve != nil {
		unobserve()
	}
}

func (t *Tracker) onChange(p *domain.Principal) {
	t.mu.Lock()
	t.current = p
	fns := make([]func(*domain.Principal), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
