package core

import "sync"

// Registry tracks which identities currently hold a live connection.
// At most one connection per identity: a second registration for the same
// identity replaces the entry, the previous connection is only evicted from
// lookup, not closed. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]*Client
	anonymous  map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]*Client),
		anonymous:  make(map[*Client]struct{}),
	}
}

// Register stores the client, replacing any previous entry for its identity.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Identity == "" {
		r.anonymous[c] = struct{}{}
		return
	}
	r.byIdentity[c.Identity] = c
}

// Unregister removes the client. The identity mapping is only removed if it
// still points at this client, so a replaced connection's deferred unregister
// cannot evict its successor. Idempotent.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Identity == "" {
		delete(r.anonymous, c)
		return
	}
	if current, ok := r.byIdentity[c.Identity]; ok && current == c {
		delete(r.byIdentity, c.Identity)
	}
}

// Lookup returns the live connection for an identity, if any.
func (r *Registry) Lookup(identity string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byIdentity[identity]
	return c, ok
}

// IsOnline reports whether an identity currently holds a live connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byIdentity[identity]
	return ok
}

// Count returns the number of live connections, anonymous ones included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byIdentity) + len(r.anonymous)
}

// All snapshots every addressable (identified) connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.byIdentity))
	for _, c := range r.byIdentity {
		clients = append(clients, c)
	}
	return clients
}

// Subset snapshots the connections for the given identities.
// Identities with no live connection are skipped.
func (r *Registry) Subset(identities []string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(identities))
	for _, id := range identities {
		if c, ok := r.byIdentity[id]; ok {
			clients = append(clients, c)
		}
	}
	return clients
}
