package realtime

import (
	"sort"
	"sync"
)

// Presence maps each online user to their active connection. A newer
// connection for the same user replaces the older one.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]Conn)}
}

// Register stores conn as the user's active connection and returns the
// connection it replaced, if any.
func (p *Presence) Register(userID string, conn Conn) (Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, ok := p.conns[userID]
	p.conns[userID] = conn
	if ok && previous.ID() == conn.ID() {
		return nil, false
	}
	return previous, ok
}

// Unregister removes the user's entry only while it still points at conn, so
// a stale connection closing late cannot evict its replacement.
func (p *Presence) Unregister(userID string, conn Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.conns[userID]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(p.conns, userID)
	return true
}

// Lookup returns the user's active connection.
func (p *Presence) Lookup(userID string) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.conns[userID]
	return conn, ok
}

// Online returns the online user ids in sorted order.
func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]string, 0, len(p.conns))
	for userID := range p.conns {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Count returns the number of online users.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Broadcast delivers event to every registered connection and returns the
// number of connections that rejected it.
func (p *Presence) Broadcast(event Event) int {
	p.mu.RLock()
	targets := make([]Conn, 0, len(p.conns))
	for _, conn := range p.conns {
		targets = append(targets, conn)
	}
	p.mu.RUnlock()

	dropped := 0
	for _, conn := range targets {
		if !conn.Deliver(event) {
			dropped++
		}
	}
	return dropped
}
