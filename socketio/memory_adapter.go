package socketio

import (
	"sync"
)

// MemoryAdapter is an in-memory implementation of the Adapter interface
type MemoryAdapter struct {
	rooms       map[string]map[string]struct{} // room -> socket IDs
	socketRooms map[string]map[string]struct{} // socket ID -> rooms
	mu          sync.RWMutex
	deliverer   Deliverer
}

// NewMemoryAdapter creates a new in-memory adapter
func NewMemoryAdapter(d Deliverer) *MemoryAdapter {
	return &MemoryAdapter{
		rooms:       make(map[string]map[string]struct{}),
		socketRooms: make(map[string]map[string]struct{}),
		deliverer:   d,
	}
}

// Add adds a socket to a room
func (a *MemoryAdapter) Add(socketID, room string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rooms[room] == nil {
		a.rooms[room] = make(map[string]struct{})
	}
	a.rooms[room][socketID] = struct{}{}

	if a.socketRooms[socketID] == nil {
		a.socketRooms[socketID] = make(map[string]struct{})
	}
	a.socketRooms[socketID][room] = struct{}{}
}

// Remove removes a socket from a room
func (a *MemoryAdapter) Remove(socketID, room string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.removeLocked(socketID, room)
	if rooms := a.socketRooms[socketID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(a.socketRooms, socketID)
		}
	}
}

// RemoveAll removes a socket from all rooms
func (a *MemoryAdapter) RemoveAll(socketID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for room := range a.socketRooms[socketID] {
		a.removeLocked(socketID, room)
	}
	delete(a.socketRooms, socketID)
}

func (a *MemoryAdapter) removeLocked(socketID, room string) {
	members := a.rooms[room]
	if members == nil {
		return
	}
	delete(members, socketID)
	if len(members) == 0 {
		delete(a.rooms, room)
	}
}

// Sockets returns all socket IDs in a room
func (a *MemoryAdapter) Sockets(room string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return keys(a.rooms[room])
}

// SocketRooms returns all rooms a socket is in
func (a *MemoryAdapter) SocketRooms(socketID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return keys(a.socketRooms[socketID])
}

// Rooms returns every non-empty room.
func (a *MemoryAdapter) Rooms() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return keys(a.rooms)
}

// Broadcast sends a packet to all sockets in the selected rooms except
// excluded ones.
func (a *MemoryAdapter) Broadcast(packet *Packet, opts BroadcastOptions) (int, error) {
	return a.deliver(packet.Encode(), opts), nil
}

// deliver fans an encoded packet out under the read lock, so the recipient
// set is exactly the membership at call time and every recipient's queue
// sees packets in the order Broadcast was called.
func (a *MemoryAdapter) deliver(encoded []byte, opts BroadcastOptions) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	excluded := make(map[string]struct{}, len(opts.Except))
	for _, id := range opts.Except {
		excluded[id] = struct{}{}
	}

	targets := make(map[string]struct{})
	if len(opts.Rooms) == 0 {
		for id := range a.socketRooms {
			targets[id] = struct{}{}
		}
	} else {
		for _, room := range opts.Rooms {
			for id := range a.rooms[room] {
				targets[id] = struct{}{}
			}
		}
	}

	delivered := 0
	for id := range targets {
		if _, skip := excluded[id]; skip {
			continue
		}
		if a.deliverer.Deliver(id, encoded) {
			delivered++
		}
	}

	return delivered
}

// Close cleans up the adapter
func (a *MemoryAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rooms = make(map[string]map[string]struct{})
	a.socketRooms = make(map[string]map[string]struct{})

	return nil
}

func keys[V any](m map[string]V) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}
