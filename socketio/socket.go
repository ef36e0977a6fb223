package socketio

import (
	"encoding/json"
	"sync"

	"github.com/sasagar/rtsv/engineio"
)

// EventHandler handles one inbound event. args are the raw JSON arguments
// that followed the event name.
type EventHandler func(args []json.RawMessage)

// Socket represents a client connection to one namespace.
type Socket struct {
	id        string
	session   *engineio.Session
	namespace *Namespace

	handlers    map[string][]EventHandler
	anyHandlers []func(string, []json.RawMessage)
	handlersMu  sync.RWMutex

	onDisconnect []func(string)
	disconnectMu sync.RWMutex
	closeOnce    sync.Once
}

func newSocket(id string, session *engineio.Session, namespace *Namespace) *Socket {
	return &Socket{
		id:        id,
		session:   session,
		namespace: namespace,
		handlers:  make(map[string][]EventHandler),
	}
}

// ID returns the socket ID
func (s *Socket) ID() string {
	return s.id
}

// SessionID returns the underlying Engine.IO session ID.
func (s *Socket) SessionID() string {
	return s.session.ID()
}

// Namespace returns the namespace the socket belongs to.
func (s *Socket) Namespace() *Namespace {
	return s.namespace
}

// Emit sends an event to this socket only.
func (s *Socket) Emit(event string, args ...any) error {
	packet, err := NewEvent(s.namespace.name, event, args...)
	if err != nil {
		return err
	}

	return s.sendPacket(packet)
}

// On registers an event handler
func (s *Socket) On(event string, handler EventHandler) {
	s.handlersMu.Lock()
	s.handlers[event] = append(s.handlers[event], handler)
	s.handlersMu.Unlock()
}

// OnAny registers a handler that runs for every inbound event before the
// handlers registered for its name.
func (s *Socket) OnAny(handler func(event string, args []json.RawMessage)) {
	s.handlersMu.Lock()
	s.anyHandlers = append(s.anyHandlers, handler)
	s.handlersMu.Unlock()
}

// Join adds the socket to a room
func (s *Socket) Join(room string) {
	s.namespace.adapter.Add(s.id, room)
}

// Leave removes the socket from a room
func (s *Socket) Leave(room string) {
	s.namespace.adapter.Remove(s.id, room)
}

// Rooms returns all rooms the socket is in
func (s *Socket) Rooms() []string {
	return s.namespace.adapter.SocketRooms(s.id)
}

// InRoom reports whether the socket is a member of room.
func (s *Socket) InRoom(room string) bool {
	for _, r := range s.Rooms() {
		if r == room {
			return true
		}
	}
	return false
}

// OnDisconnect registers a disconnect handler
func (s *Socket) OnDisconnect(handler func(string)) {
	s.disconnectMu.Lock()
	s.onDisconnect = append(s.onDisconnect, handler)
	s.disconnectMu.Unlock()
}

// Disconnect closes the underlying transport.
func (s *Socket) Disconnect() {
	s.session.Close("server disconnect")
}

func (s *Socket) sendPacket(packet *Packet) error {
	return s.session.Send(engineio.Message(packet.Encode()))
}

// dispatch runs the handlers of an event packet in registration order on
// the caller's goroutine. A panicking handler is logged and does not affect
// the connection.
func (s *Socket) dispatch(packet *Packet) {
	event, args, err := packet.Event()
	if err != nil {
		s.namespace.logger.Debug().Err(err).Str("socket", s.id).Msg("dropping malformed event")
		return
	}

	s.handlersMu.RLock()
	catchAll := s.anyHandlers
	handlers := s.handlers[event]
	s.handlersMu.RUnlock()

	for _, handler := range catchAll {
		s.invoke(event, func(args []json.RawMessage) { handler(event, args) }, args)
	}
	for _, handler := range handlers {
		s.invoke(event, handler, args)
	}
}

func (s *Socket) invoke(event string, handler EventHandler, args []json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.namespace.logger.Error().
				Interface("panic", r).
				Str("socket", s.id).
				Str("event", event).
				Msg("event handler panicked")
		}
	}()

	handler(args)
}

func (s *Socket) handleClose(reason string) {
	s.closeOnce.Do(func() {
		s.namespace.removeSocket(s.id)

		s.disconnectMu.RLock()
		handlers := s.onDisconnect
		s.disconnectMu.RUnlock()

		for _, handler := range handlers {
			handler(reason)
		}

		s.namespace.logger.Debug().Str("socket", s.id).Str("reason", reason).Msg("socket disconnected")
	})
}
