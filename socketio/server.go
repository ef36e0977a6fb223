package socketio

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/engineio"
)

// Config represents Socket.IO server configuration
type Config struct {
	// Path is the endpoint the server answers on, e.g. "/api/socket".
	Path           string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	MaxPayload     int
	AllowedOrigins []string

	// Adapter builds the room registry of each namespace. Defaults to
	// MemoryAdapterFactory.
	Adapter AdapterFactory

	Logger zerolog.Logger
}

// Server represents a Socket.IO server
type Server struct {
	eio        *engineio.Server
	path       string
	adapter    AdapterFactory
	namespaces map[string]*Namespace
	nsMu       sync.RWMutex
	logger     zerolog.Logger
}

// NewServer creates a new Socket.IO server
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{Logger: zerolog.Nop()}
	}

	eioConfig := engineio.DefaultConfig()
	if config.PingInterval > 0 {
		eioConfig.PingInterval = config.PingInterval
	}
	if config.PingTimeout > 0 {
		eioConfig.PingTimeout = config.PingTimeout
	}
	if config.MaxPayload > 0 {
		eioConfig.MaxPayload = config.MaxPayload
	}
	eioConfig.AllowedOrigins = config.AllowedOrigins
	eioConfig.Logger = config.Logger

	path := strings.TrimSuffix(config.Path, "/")
	if path == "" {
		path = "/socket.io"
	}

	factory := config.Adapter
	if factory == nil {
		factory = MemoryAdapterFactory
	}

	server := &Server{
		eio:        engineio.NewServer(eioConfig),
		path:       path,
		adapter:    factory,
		namespaces: make(map[string]*Namespace),
		logger:     config.Logger.With().Str("component", "socketio").Logger(),
	}

	server.Of(DefaultNamespace)
	server.eio.OnConnect(server.handleConnection)

	return server
}

// Path returns the endpoint path the server answers on.
func (s *Server) Path() string {
	return s.path
}

// Of returns a namespace, creating it if it doesn't exist
func (s *Server) Of(name string) *Namespace {
	if name == "" {
		name = DefaultNamespace
	}

	s.nsMu.RLock()
	ns, exists := s.namespaces[name]
	s.nsMu.RUnlock()

	if exists {
		return ns
	}

	s.nsMu.Lock()
	defer s.nsMu.Unlock()

	// Double-check after acquiring write lock
	if ns, exists := s.namespaces[name]; exists {
		return ns
	}

	ns = newNamespace(name, s.adapter, s.logger)
	s.namespaces[name] = ns

	return ns
}

// OnConnect sets the connection handler for the default namespace
func (s *Server) OnConnect(handler func(*Socket)) {
	s.Of(DefaultNamespace).OnConnect(handler)
}

// To returns a BroadcastOperator for the default namespace
func (s *Server) To(rooms ...string) *BroadcastOperator {
	return s.Of(DefaultNamespace).To(rooms...)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path != s.path && !strings.HasPrefix(path, s.path+"/") {
		http.NotFound(w, r)
		return
	}

	s.eio.ServeHTTP(w, r)
}

// Close closes the server and all connections
func (s *Server) Close() error {
	s.eio.Close()

	s.nsMu.RLock()
	defer s.nsMu.RUnlock()

	var firstErr error
	for _, ns := range s.namespaces {
		if err := ns.adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// handleConnection wires one Engine.IO session to the namespaces it
// connects to. Packets are handled on the session's read goroutine, so one
// client's events are processed sequentially in the order it sent them.
func (s *Server) handleConnection(session *engineio.Session) {
	var mu sync.Mutex
	sockets := make(map[string]*Socket)

	session.OnMessage(func(data []byte) {
		packet, err := DecodePacket(data)
		if err != nil {
			s.logger.Debug().Err(err).Str("sid", session.ID()).Msg("dropping undecodable packet")
			return
		}

		mu.Lock()
		socket := sockets[packet.Namespace]
		mu.Unlock()

		switch packet.Type {
		case PacketTypeConnect:
			if socket != nil {
				return
			}
			ns, ok := s.lookup(packet.Namespace)
			if !ok {
				s.connectError(session, packet.Namespace, "Invalid namespace")
				return
			}
			socket = ns.addSocket(session)
			mu.Lock()
			sockets[packet.Namespace] = socket
			mu.Unlock()

			// The session may have closed while the socket was being added.
			select {
			case <-session.Done():
				socket.handleClose("transport close")
			default:
			}

		case PacketTypeDisconnect:
			if socket == nil {
				return
			}
			mu.Lock()
			delete(sockets, packet.Namespace)
			mu.Unlock()
			socket.handleClose("client namespace disconnect")

		case PacketTypeEvent:
			if socket == nil {
				return
			}
			socket.dispatch(packet)
		}
	})

	session.OnClose(func(reason string) {
		mu.Lock()
		open := make([]*Socket, 0, len(sockets))
		for _, socket := range sockets {
			open = append(open, socket)
		}
		sockets = map[string]*Socket{}
		mu.Unlock()

		for _, socket := range open {
			socket.handleClose(reason)
		}
	})
}

func (s *Server) lookup(name string) (*Namespace, bool) {
	s.nsMu.RLock()
	defer s.nsMu.RUnlock()

	ns, ok := s.namespaces[name]
	return ns, ok
}

func (s *Server) connectError(session *engineio.Session, namespace, message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	packet := &Packet{Type: PacketTypeConnectError, Namespace: namespace, Data: data}
	session.Send(engineio.Message(packet.Encode()))
}
