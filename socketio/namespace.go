package socketio

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/engineio"
)

// Namespace represents a Socket.IO namespace
type Namespace struct {
	name      string
	adapter   Adapter
	sockets   map[string]*Socket
	mu        sync.RWMutex
	onConnect func(*Socket)
	logger    zerolog.Logger
}

func newNamespace(name string, factory AdapterFactory, logger zerolog.Logger) *Namespace {
	ns := &Namespace{
		name:    name,
		sockets: make(map[string]*Socket),
		logger:  logger.With().Str("nsp", name).Logger(),
	}
	ns.adapter = factory(ns)

	return ns
}

// Name returns the namespace name
func (ns *Namespace) Name() string {
	return ns.name
}

// Adapter returns the namespace's room registry.
func (ns *Namespace) Adapter() Adapter {
	return ns.adapter
}

// OnConnect sets the connection handler for this namespace
func (ns *Namespace) OnConnect(handler func(*Socket)) {
	ns.mu.Lock()
	ns.onConnect = handler
	ns.mu.Unlock()
}

// To returns a BroadcastOperator for emitting to specific rooms
func (ns *Namespace) To(rooms ...string) *BroadcastOperator {
	return &BroadcastOperator{
		namespace: ns,
		rooms:     rooms,
	}
}

// Emit broadcasts an event to all sockets in the namespace
func (ns *Namespace) Emit(event string, args ...any) (int, error) {
	return ns.To().Emit(event, args...)
}

// Sockets returns all connected sockets
func (ns *Namespace) Sockets() []*Socket {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	sockets := make([]*Socket, 0, len(ns.sockets))
	for _, socket := range ns.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

// Deliver implements Deliverer for sockets connected to this process.
func (ns *Namespace) Deliver(socketID string, encoded []byte) bool {
	ns.mu.RLock()
	socket, ok := ns.sockets[socketID]
	ns.mu.RUnlock()

	if !ok {
		return false
	}
	return socket.session.Send(engineio.Message(encoded)) == nil
}

func (ns *Namespace) addSocket(session *engineio.Session) *Socket {
	socket := newSocket(uuid.NewString(), session, ns)

	ns.mu.Lock()
	ns.sockets[socket.ID()] = socket
	handler := ns.onConnect
	ns.mu.Unlock()

	// Every socket is addressable through a room named after its ID.
	socket.Join(socket.ID())

	data, _ := json.Marshal(map[string]string{"sid": socket.ID()})
	socket.sendPacket(&Packet{
		Type:      PacketTypeConnect,
		Namespace: ns.name,
		Data:      data,
	})

	ns.logger.Debug().Str("socket", socket.ID()).Str("sid", session.ID()).Msg("socket connected")

	if handler != nil {
		handler(socket)
	}

	return socket
}

func (ns *Namespace) removeSocket(id string) {
	ns.mu.Lock()
	delete(ns.sockets, id)
	ns.mu.Unlock()

	ns.adapter.RemoveAll(id)
}

// BroadcastOperator provides methods for broadcasting to specific rooms
type BroadcastOperator struct {
	namespace *Namespace
	rooms     []string
	except    []string
}

// To adds rooms to broadcast to
func (b *BroadcastOperator) To(rooms ...string) *BroadcastOperator {
	b.rooms = append(b.rooms, rooms...)
	return b
}

// Except excludes specific socket IDs from the broadcast
func (b *BroadcastOperator) Except(socketIDs ...string) *BroadcastOperator {
	b.except = append(b.except, socketIDs...)
	return b
}

// Emit broadcasts an event and returns the number of local deliveries.
func (b *BroadcastOperator) Emit(event string, args ...any) (int, error) {
	packet, err := NewEvent(b.namespace.name, event, args...)
	if err != nil {
		return 0, err
	}

	return b.namespace.adapter.Broadcast(packet, BroadcastOptions{Rooms: b.rooms, Except: b.except})
}
