// Package presence tracks which users currently hold a live connection to
// this gateway process. It is the single source of truth for reachability:
// every fan-out consults it before pushing bytes.
//
// The registry keeps at most one entry per user. A new registration for the
// same user replaces the previous one and returns it so the caller can decide
// what to do with the superseded connection.
package presence

import "sync"

// Conn is a live connection handle as seen by the rest of the gateway.
// Push must not block on network I/O; implementations enqueue and return.
type Conn interface {
	ID() string
	Push(event string, payload any) error
}

// Registry is a concurrency-safe map from user id to its current Conn.
// The zero value is not usable; call New.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register makes c the current connection for userID, overwriting any prior
// entry. The replaced handle, if any and distinct from c, is returned.
func (r *Registry) Register(userID string, c Conn) (prev Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.conns[userID]
	r.conns[userID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes the entry for userID only when c is the handle currently
// registered. It reports whether an entry was removed; a stale handle from a
// superseded session is a no-op.
func (r *Registry) Unregister(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[userID]
	if !ok || cur != c {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the current connection for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// IsOnline reports whether userID has a registered connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Push delivers event to userID if online. It reports whether a connection
// was found; a push error from the connection is returned alongside.
func (r *Registry) Push(userID, event string, payload any) (bool, error) {
	c, ok := r.Lookup(userID)
	if !ok {
		return false, nil
	}
	return true, c.Push(event, payload)
}
