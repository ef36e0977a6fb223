package engineio

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowClient    = errors.New("slow client")
)

// Config holds Engine.IO server configuration
type Config struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	MaxPayload   int // bytes

	// AllowedOrigins lists the Origin values accepted on upgrade. Empty or "*"
	// accepts any origin.
	AllowedOrigins []string

	// QueueSize bounds the per-session outbound queue.
	QueueSize int

	Logger zerolog.Logger
}

// DefaultConfig returns default Engine.IO configuration
func DefaultConfig() *Config {
	return &Config{
		PingInterval: 25 * time.Second,
		PingTimeout:  20 * time.Second,
		MaxPayload:   1e6,
		QueueSize:    256,
		Logger:       zerolog.Nop(),
	}
}

// Server represents an Engine.IO server
type Server struct {
	config    *Config
	upgrader  websocket.Upgrader
	sessions  sync.Map
	onConnect func(*Session)
	logger    zerolog.Logger
}

// NewServer creates a new Engine.IO server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}

	s := &Server{
		config: config,
		logger: config.Logger.With().Str("component", "engineio").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:      s.checkOrigin,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}

	return s
}

// ServeHTTP handles HTTP requests and upgrades to WebSocket
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if eio := q.Get("EIO"); eio != "" && eio != Protocol {
		writeError(w, 5, "Unsupported protocol version")
		return
	}
	if q.Get("transport") != "websocket" {
		writeError(w, 0, "Transport unknown")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	conn.SetReadLimit(int64(s.config.MaxPayload))

	sid := uuid.NewString()
	session := NewSession(sid, conn, s)

	handshake, err := EncodeHandshake(sid, s.config)
	if err != nil {
		conn.Close()
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, handshake); err != nil {
		s.logger.Debug().Err(err).Str("sid", sid).Msg("handshake write failed")
		conn.Close()
		return
	}

	s.sessions.Store(sid, session)
	session.OnClose(func(reason string) {
		s.sessions.Delete(sid)
		s.logger.Debug().Str("sid", sid).Str("reason", reason).Msg("session closed")
	})

	s.logger.Debug().Str("sid", sid).Str("remote_addr", r.RemoteAddr).Msg("session opened")

	if s.onConnect != nil {
		s.onConnect(session)
	}

	session.Start()
}

// OnConnect sets the connection handler. It runs before the session starts
// reading, so handlers it installs see every packet.
func (s *Server) OnConnect(fn func(*Session)) {
	s.onConnect = fn
}

// GetSession retrieves a session by ID
func (s *Server) GetSession(sid string) (*Session, bool) {
	val, ok := s.sessions.Load(sid)
	if !ok {
		return nil, false
	}
	return val.(*Session), true
}

// Count returns the number of open sessions.
func (s *Server) Count() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close closes all sessions
func (s *Server) Close() {
	s.sessions.Range(func(key, value any) bool {
		value.(*Session).Close("server shutdown")
		return true
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.AllowedOrigins) == 0 {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}

	s.logger.Warn().Str("origin", origin).Msg("rejected origin")
	return false
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `{"code":%d,"message":%q}`, code, message)
}
