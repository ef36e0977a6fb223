package engineio

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Session represents an Engine.IO session
type Session struct {
	id       string
	conn     *websocket.Conn
	server   *Server
	outgoing chan *Packet

	closeOnce sync.Once
	closed    chan struct{}
	writeMu   sync.Mutex

	mu         sync.RWMutex
	onMessage  func([]byte)
	closeHooks []func(string)
}

// NewSession creates a new Engine.IO session
func NewSession(id string, conn *websocket.Conn, server *Server) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		server:   server,
		outgoing: make(chan *Packet, server.config.QueueSize),
		closed:   make(chan struct{}),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Start starts the session loops
func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
}

// Send queues a packet for the client without blocking. A session whose
// queue is full is closed; the client is expected to reconnect and resync.
func (s *Session) Send(packet *Packet) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outgoing <- packet:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	default:
		go s.Close("slow client")
		return ErrSlowClient
	}
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Close closes the session
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		close(s.closed)

		packet := &Packet{Type: PacketTypeClose}
		s.write(packet)
		s.conn.Close()

		s.mu.RLock()
		hooks := s.closeHooks
		s.mu.RUnlock()

		for _, hook := range hooks {
			hook(reason)
		}
	})
}

// OnMessage sets the message handler. It is invoked on the read goroutine,
// one message at a time, in arrival order.
func (s *Session) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnClose registers a handler run once when the session closes.
func (s *Session) OnClose(fn func(string)) {
	s.mu.Lock()
	s.closeHooks = append(s.closeHooks, fn)
	s.mu.Unlock()
}

func (s *Session) readLoop() {
	reason := "transport error"
	defer func() { s.Close(reason) }()

	deadline := s.server.config.PingInterval + s.server.config.PingTimeout

	for {
		s.conn.SetReadDeadline(time.Now().Add(deadline))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "transport close"
			} else if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				reason = "ping timeout"
			}
			return
		}

		packet, err := DecodePacket(data)
		if err != nil {
			s.server.logger.Debug().Err(err).Str("sid", s.id).Msg("dropping undecodable packet")
			continue
		}

		switch packet.Type {
		case PacketTypePing:
			s.Send(&Packet{Type: PacketTypePong, Data: packet.Data})
		case PacketTypeMessage:
			s.handleMessage(packet.Data)
		case PacketTypeClose:
			reason = "client closed"
			return
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.server.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case packet := <-s.outgoing:
			if err := s.write(packet); err != nil {
				s.Close("write error")
				return
			}
		case <-ticker.C:
			if err := s.write(&Packet{Type: PacketTypePing}); err != nil {
				s.Close("write error")
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) write(packet *Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, packet.Encode())
}

func (s *Session) handleMessage(data []byte) {
	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()

	if handler != nil {
		handler(data)
	}
}
