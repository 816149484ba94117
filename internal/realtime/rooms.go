package realtime

import "sync"

// Rooms groups connections by conversation. Membership only scopes typing
// indicators; message delivery goes through Presence.
type Rooms struct {
	mu      sync.RWMutex
	members map[uint]map[string]Conn
}

// NewRooms constructs an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{members: make(map[uint]map[string]Conn)}
}

// Join adds conn to the room.
func (r *Rooms) Join(roomID uint, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.members[roomID]
	if !ok {
		room = make(map[string]Conn)
		r.members[roomID] = room
	}
	room[conn.ID()] = conn
}

// Leave removes conn from the room.
func (r *Rooms) Leave(roomID uint, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, conn.ID())
}

// LeaveAll drops every membership held by conn.
func (r *Rooms) LeaveAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.members {
		r.leaveLocked(roomID, conn.ID())
	}
}

func (r *Rooms) leaveLocked(roomID uint, connID string) {
	room, ok := r.members[roomID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.members, roomID)
	}
}

// IsMember reports whether conn has joined the room.
func (r *Rooms) IsMember(roomID uint, conn Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[roomID][conn.ID()]
	return ok
}

// Size returns the number of connections in the room.
func (r *Rooms) Size(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}

// Broadcast delivers event to every member except the connection with
// exceptID. It returns how many members accepted the event.
func (r *Rooms) Broadcast(roomID uint, event Event, exceptID string) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.members[roomID]))
	for id, conn := range r.members[roomID] {
		if id == exceptID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if conn.Deliver(event) {
			delivered++
		}
	}
	return delivered
}
