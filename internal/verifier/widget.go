// Package verifier provides the human-verification widget required by the
// identity provider before it issues phone OTPs.
package verifier

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyAttached is returned when a caller tries to attach a second
// widget while a previous one is still registered under the same owner.
var ErrAlreadyAttached = errors.New("verifier: widget already attached for owner")

// Widget is an attached human-verification challenge. A widget is owned by
// exactly one controller for its whole lifetime, is reused across repeated
// OTP requests, and must be closed on the owner's teardown.
type Widget interface {
	// Verify completes the human check for the current attempt. Returns nil
	// when the widget can prove a human is present.
	Verify(ctx context.Context) error
	// Close detaches the widget. Safe to call more than once.
	Close()
}

// Factory creates widgets and enforces single attachment per owner: the
// provider rejects double registration, so a second attach is prevented here
// by construction rather than retried.
type Factory struct {
	mu       sync.Mutex
	attached map[string]*ownedWidget
	newFn    func(owner string) Widget
}

// NewFactory returns a Factory that builds widgets with newFn.
func NewFactory(newFn func(owner string) Widget) *Factory {
	return &Factory{attached: make(map[string]*ownedWidget), newFn: newFn}
}

// Attach creates and registers a widget for owner. Returns ErrAlreadyAttached
// while a previous widget for the same owner has not been closed.
func (f *Factory) Attach(owner string) (Widget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attached[owner]; ok {
		return nil, ErrAlreadyAttached
	}
	w := &ownedWidget{Widget: f.newFn(owner), factory: f, owner: owner}
	f.attached[owner] = w
	return w, nil
}

// Attached reports whether owner currently has a live widget.
func (f *Factory) Attached(owner string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.attached[owner]
	return ok
}

type ownedWidget struct {
	Widget
	factory *Factory
	owner   string
	once    sync.Once
}

func (w *ownedWidget) Close() {
	w.once.Do(func() {
		w.factory.mu.Lock()
		delete(w.factory.attached, w.owner)
		w.factory.mu.Unlock()
		w.Widget.Close()
	})
}

// TokenBag holds the latest client-supplied challenge token per owner until
// the owner's widget consumes it. Each token proves one attempt.
type TokenBag struct {
	mu sync.Mutex
	m  map[string]string
}

// NewTokenBag returns an empty TokenBag.
func NewTokenBag() *TokenBag {
	return &TokenBag{m: make(map[string]string)}
}

// Put stores token for owner, replacing any unconsumed one.
func (b *TokenBag) Put(owner, token string) {
	b.mu.Lock()
	b.m[owner] = token
	b.mu.Unlock()
}

// Take returns and removes the token for owner, or "".
func (b *TokenBag) Take(owner string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.m[owner]
	delete(b.m, owner)
	return t
}
