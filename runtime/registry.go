// Package runtime wires the live parts of the messaging core: the session
// registry and the delivery router. It contains no transport or storage
// logic of its own.
package runtime

import (
	"sync"

	"courier/contract"
)

type Set map[string]struct{}

// Registry is the session registry: it maps an authenticated identity to its
// set of live connections. It is the only shared mutable structure in the
// system; every method takes the mutex so a lookup never observes a
// half-updated set. Store I/O must never happen under this lock.
type Registry struct {
	mu      sync.RWMutex
	sinks   map[string]contract.EventSink // connection id -> sink
	members map[string]Set                // identity -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:   make(map[string]contract.EventSink),
		members: make(map[string]Set),
	}
}

// Register adds a connection under an identity's set. It is idempotent and
// always succeeds; registering the same connection id twice replaces the
// sink and leaves the set unchanged.
func (r *Registry) Register(identity, connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[connectionID] = sink

	if _, ok := r.members[identity]; !ok {
		r.members[identity] = make(Set)
	}
	r.members[identity][connectionID] = struct{}{}
}

// Deregister removes a connection from an identity's set. The identity entry
// is pruned once its last connection is gone, so the registry never leaks
// empty sets. Deregistering an unknown pair is a no-op.
func (r *Registry) Deregister(identity, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, connectionID)

	if members, ok := r.members[identity]; ok {
		delete(members, connectionID)

		if len(members) == 0 {
			delete(r.members, identity)
		}
	}
}

// ConnectionsFor returns the connection ids currently registered for an
// identity. Unknown or offline identities yield an empty result, never an
// error: offline delivery is simply "zero recipients".
func (r *Registry) ConnectionsFor(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[identity]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members))
	for connectionID := range members {
		ids = append(ids, connectionID)
	}
	return ids
}

// SinksFor resolves an identity's live connections into their delivery
// sinks. The slice is built under the read lock; pushing to the sinks
// happens outside it.
func (r *Registry) SinksFor(identity string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[identity]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connectionID := range members {
		if sink, exists := r.sinks[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Size returns the number of live connections across all identities.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
