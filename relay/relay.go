package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/internal/metrics"
	"github.com/sasagar/rtsv/socketio"
)

// DefaultPath is the endpoint clients and server agree on unless configured.
const DefaultPath = "/api/socket"

// NormalizePath returns path with a single leading slash and no trailing
// slash. An empty path or "/" yields DefaultPath.
func NormalizePath(path string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return DefaultPath
	}
	return path
}

// Config represents relay configuration
type Config struct {
	Path           string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	MaxPayload     int
	AllowedOrigins []string

	// Adapter builds the room registry. Nil keeps membership in memory.
	Adapter socketio.AdapterFactory

	// ExcludeSender keeps a broadcast from being echoed to its sender.
	ExcludeSender bool
	// RequireMembership drops broadcasts addressed to a room the sender has
	// not joined.
	RequireMembership bool

	Logger zerolog.Logger
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Relay rebroadcasts a fixed vocabulary of events to the room named in each
// payload. It has no knowledge of the events, questions or answers behind
// the ids it routes.
type Relay struct {
	server *socketio.Server
	ns     *socketio.Namespace

	excludeSender     bool
	requireMembership bool

	logger zerolog.Logger
}

// New creates a relay and registers its routing on the default namespace.
func New(cfg *Config) *Relay {
	if cfg == nil {
		cfg = &Config{Logger: zerolog.Nop()}
	}

	server := socketio.NewServer(&socketio.Config{
		Path:           NormalizePath(cfg.Path),
		PingInterval:   cfg.PingInterval,
		PingTimeout:    cfg.PingTimeout,
		MaxPayload:     cfg.MaxPayload,
		AllowedOrigins: cfg.AllowedOrigins,
		Adapter:        cfg.Adapter,
		Logger:         cfg.Logger,
	})

	r := &Relay{
		server:            server,
		ns:                server.Of(socketio.DefaultNamespace),
		excludeSender:     cfg.ExcludeSender,
		requireMembership: cfg.RequireMembership,
		logger:            cfg.Logger.With().Str("component", "relay").Logger(),
	}
	server.OnConnect(r.handleConnect)

	return r
}

// Path returns the endpoint path the relay answers on.
func (r *Relay) Path() string {
	return r.server.Path()
}

// Server exposes the underlying Socket.IO server.
func (r *Relay) Server() *socketio.Server {
	return r.server
}

// Stats reports the number of sockets connected to this process and the
// number of non-empty rooms, not counting the per-socket rooms.
func (r *Relay) Stats() Stats {
	sockets := r.ns.Sockets()

	own := make(map[string]struct{}, len(sockets))
	for _, s := range sockets {
		own[s.ID()] = struct{}{}
	}

	rooms := 0
	for _, room := range r.ns.Adapter().Rooms() {
		if _, ok := own[room]; !ok {
			rooms++
		}
	}

	return Stats{Connections: len(sockets), Rooms: rooms}
}

// ServeHTTP implements http.Handler
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.server.ServeHTTP(w, req)
}

// Close disconnects every client and releases the room registry.
func (r *Relay) Close() error {
	return r.server.Close()
}

func (r *Relay) handleConnect(socket *socketio.Socket) {
	metrics.ConnectionsActive.Inc()
	r.logger.Debug().Str("socket", socket.ID()).Msg("client connected")

	socket.OnAny(func(event string, _ []json.RawMessage) {
		metrics.RelayMessagesTotal.WithLabelValues(event).Inc()
		if !Known(event) {
			metrics.RelayDroppedTotal.WithLabelValues(event, "unknown_event").Inc()
		}
	})

	socket.On(EventJoin, func(args []json.RawMessage) {
		r.join(socket, args)
	})

	for event := range routes {
		event := event
		socket.On(event, func(args []json.RawMessage) {
			r.route(socket, event, args)
		})
	}

	socket.OnDisconnect(func(reason string) {
		metrics.ConnectionsActive.Dec()
		r.logger.Debug().Str("socket", socket.ID()).Str("reason", reason).Msg("client disconnected")
	})
}

func (r *Relay) join(socket *socketio.Socket, args []json.RawMessage) {
	var raw json.RawMessage
	if len(args) > 0 {
		raw = args[0]
	}

	room, ok := roomID(raw)
	if !ok {
		metrics.RelayDroppedTotal.WithLabelValues(EventJoin, "no_room").Inc()
		r.logger.Debug().Str("socket", socket.ID()).RawJSON("arg", orNull(raw)).Msg("join without room id")
		return
	}

	socket.Join(room)
	r.logger.Debug().Str("socket", socket.ID()).Str("room", room).Msg("joined room")
}

func (r *Relay) route(socket *socketio.Socket, event string, args []json.RawMessage) {
	room, emit, payload, ok := plan(event, args)
	if !ok {
		metrics.RelayDroppedTotal.WithLabelValues(event, "no_room").Inc()
		r.logger.Debug().Str("socket", socket.ID()).Str("event", event).Msg("dropping message without room id")
		return
	}

	if r.requireMembership && !socket.InRoom(room) {
		metrics.RelayDroppedTotal.WithLabelValues(event, "not_member").Inc()
		r.logger.Debug().Str("socket", socket.ID()).Str("event", event).Str("room", room).Msg("dropping message for foreign room")
		return
	}

	op := r.ns.To(room)
	if r.excludeSender {
		op = op.Except(socket.ID())
	}

	delivered, err := op.Emit(emit, payload)
	metrics.RelayBroadcastsTotal.WithLabelValues(emit).Inc()
	metrics.RelayDeliveriesTotal.Add(float64(delivered))
	if err != nil {
		r.logger.Warn().Err(err).Str("event", emit).Str("room", room).Msg("broadcast incomplete")
		return
	}

	r.logger.Debug().
		Str("socket", socket.ID()).
		Str("event", event).
		Str("room", room).
		Int("delivered", delivered).
		Msg("broadcast")
}

func orNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
