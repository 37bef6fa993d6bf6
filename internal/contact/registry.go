package contact

import (
	"strings"
	"sync"
	"time"
)

// Registry keeps one Controller per visitor session.
type Registry struct {
	newController func() *Controller
	ttl           time.Duration
	clock         func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	controller *Controller
	lastSeen   time.Time
}

// NewRegistry builds a registry whose controllers come from factory. Controllers idle
// for longer than ttl are dropped by Sweep.
func NewRegistry(factory func() *Controller, ttl time.Duration, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		newController: factory,
		ttl:           ttl,
		clock:         clock,
		entries:       make(map[string]*registryEntry),
	}
}

// Get returns the controller for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Controller {
	sessionID = strings.TrimSpace(sessionID)
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[sessionID]; ok {
		entry.lastSeen = now
		return entry.controller
	}
	ctrl := r.newController()
	r.entries[sessionID] = &registryEntry{controller: ctrl, lastSeen: now}
	return ctrl
}

// Peek returns the controller for sessionID without creating or touching it.
func (r *Registry) Peek(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[strings.TrimSpace(sessionID)]
	if !ok {
		return nil, false
	}
	return entry.controller, true
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops idle controllers and returns how many were removed. Controllers with a
// submission in flight are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.clock().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, entry := range r.entries {
		if entry.lastSeen.After(cutoff) {
			continue
		}
		if entry.controller.Snapshot().InFlight() {
			continue
		}
		delete(r.entries, id)
		removed++
	}
	return removed
}
