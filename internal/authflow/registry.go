package authflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFlowTTL is how long an untouched flow survives before the registry
// reaps it. Matches the transient nature of the flow: a reloaded tab starts
// over, nothing is resumed.
const DefaultFlowTTL = 30 * time.Minute

// Registry owns one Controller per client flow, keyed by an opaque flow id
// carried in a cookie. Expired flows are closed and dropped.
type Registry struct {
	newController func(id string) *Controller
	ttl           time.Duration

	mu    sync.Mutex
	flows map[string]*flowEntry
	nowF  func() time.Time
}

type flowEntry struct {
	ctl      *Controller
	lastSeen time.Time
}

// NewRegistry returns a Registry that builds controllers with newController.
func NewRegistry(newController func(id string) *Controller, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	return &Registry{
		newController: newController,
		ttl:           ttl,
		flows:         make(map[string]*flowEntry),
		nowF:          func() time.Time { return time.Now().UTC() },
	}
}

// Create makes a fresh flow and returns its id and controller.
func (r *Registry) Create() (string, *Controller) {
	id := uuid.New().String()
	ctl := r.newController(id)
	r.mu.Lock()
	r.flows[id] = &flowEntry{ctl: ctl, lastSeen: r.nowF()}
	r.mu.Unlock()
	return id, ctl
}

// Get returns the controller for id, refreshing its expiry. Returns nil when
// the id is unknown or the flow has expired.
func (r *Registry) Get(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.flows[id]
	if !ok {
		return nil
	}
	now := r.nowF()
	if now.Sub(e.lastSeen) > r.ttl {
		delete(r.flows, id)
		go e.ctl.Close()
		return nil
	}
	e.lastSeen = now
	return e.ctl
}

// Delete closes and removes the flow. No-op when absent.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	e, ok := r.flows[id]
	delete(r.flows, id)
	r.mu.Unlock()
	if ok {
		e.ctl.Close()
	}
}

// Sweep closes and drops all expired flows. Called periodically by the server.
func (r *Registry) Sweep() {
	now := r.nowF()
	var expired []*flowEntry
	r.mu.Lock()
	for id, e := range r.flows {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.flows, id)
			expired = append(expired, e)
		}
	}
	r.mu.Unlock()
	for _, e := range expired {
		e.ctl.Close()
	}
}

// Len reports the number of live flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
