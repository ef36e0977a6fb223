package socketio

// Adapter is the room registry of a namespace: it tracks which sockets are
// in which rooms and fans packets out to room members.
type Adapter interface {
	// Add puts a socket in a room, creating the room on first use.
	// Adding twice has no further effect.
	Add(socketID, room string)

	// Remove takes a socket out of a room. Empty rooms are discarded.
	Remove(socketID, room string)

	// RemoveAll takes a socket out of every room it is in.
	RemoveAll(socketID string)

	// Sockets returns all socket IDs in a room
	Sockets(room string) []string

	// SocketRooms returns all rooms a socket is in
	SocketRooms(socketID string) []string

	// Rooms returns every non-empty room.
	Rooms() []string

	// Broadcast delivers a packet to the current members of the given rooms,
	// or to every socket when no room is given, skipping excluded sockets.
	// It returns the number of local deliveries.
	Broadcast(packet *Packet, opts BroadcastOptions) (int, error)

	// Close cleans up the adapter
	Close() error
}

// BroadcastOptions selects the recipients of a broadcast.
type BroadcastOptions struct {
	Rooms  []string
	Except []string
}

// Deliverer hands an encoded packet to a socket of this process. It reports
// whether the socket was found.
type Deliverer interface {
	Deliver(socketID string, encoded []byte) bool
}

// AdapterFactory builds the adapter for a namespace.
type AdapterFactory func(ns *Namespace) Adapter

// MemoryAdapterFactory is the default, process-local AdapterFactory.
func MemoryAdapterFactory(ns *Namespace) Adapter {
	return NewMemoryAdapter(ns)
}
