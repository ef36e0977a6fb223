package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/engineio"
	"github.com/sasagar/rtsv/socketio"
)

// Lifecycle events. They are delivered to local listeners only and never
// sent to the relay.
const (
	EventConnect      = "connect"
	EventReconnect    = "reconnect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
	EventError        = "error"
)

const joinEvent = "join-event"

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrClosed       = errors.New("client: manager closed")
)

// Listener receives the raw JSON arguments of an event.
type Listener func(args []json.RawMessage)

// Config represents client configuration
type Config struct {
	// URL is the relay base address, e.g. "http://localhost:3000".
	URL string
	// Path is the relay endpoint path and must match the server's.
	Path             string
	HandshakeTimeout time.Duration

	// Reconnect backoff.
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	RandomizationFactor float64

	Logger zerolog.Logger
}

// DefaultConfig returns the default client configuration
func DefaultConfig() *Config {
	return &Config{
		URL:                 "http://localhost:3000",
		Path:                "/api/socket",
		HandshakeTimeout:    20 * time.Second,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		RandomizationFactor: 0.5,
		Logger:              zerolog.Nop(),
	}
}

type listener struct {
	id uint64
	fn Listener
}

type statusListener struct {
	id uint64
	fn func(State)
}

// Manager keeps one connection to the relay joined to one room. It
// reconnects with backoff after transport failures and re-joins the room on
// every successful connection.
type Manager struct {
	cfg    Config
	dialer *engineio.Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	room   string
	conn   *engineio.ClientConn
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	nextID    uint64
	listeners map[string][]listener
	statusFns []statusListener
}

// New creates a disconnected Manager.
func New(cfg *Config) *Manager {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}

	c := *cfg
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaults.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaults.MaxInterval
	}
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		c.RandomizationFactor = defaults.RandomizationFactor
	}

	return &Manager{
		cfg:       c,
		dialer:    &engineio.Dialer{Path: c.Path, HandshakeTimeout: c.HandshakeTimeout},
		logger:    c.Logger.With().Str("component", "client").Logger(),
		state:     Disconnected,
		listeners: make(map[string][]listener),
	}
}

// Status returns the current connectivity state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the manager is connected and joined.
func (m *Manager) Connected() bool {
	return m.Status() == Connected
}

// Room returns the room the manager is addressed to.
func (m *Manager) Room() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room
}

// Connect addresses the manager to roomID. An empty roomID tears down any
// connection and leaves the manager disconnected. A different roomID
// replaces the current connection with a fresh one. Connecting to the
// current room again is a no-op.
func (m *Manager) Connect(roomID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if roomID == m.room && (roomID == "" || m.cancel != nil) {
		m.mu.Unlock()
		return nil
	}

	m.stopLocked()
	m.room = roomID
	m.gen++
	gen := m.gen
	from, to := m.applyLocked(triggerStop)
	notify := m.statusSnapshotLocked()

	var ctx context.Context
	var done chan struct{}
	if roomID != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		m.cancel = cancel
		m.done = done
	}
	m.mu.Unlock()

	notifyStatus(notify, from, to)

	if roomID == "" {
		m.logger.Debug().Msg("no room, staying disconnected")
		return nil
	}

	go m.run(ctx, gen, roomID, done)
	return nil
}

// On registers fn for event. Dispose the returned Subscription when the
// owner goes away.
func (m *Manager) On(event string, fn Listener) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newSubscription(func() {})
	}

	m.nextID++
	id := m.nextID
	m.listeners[event] = append(m.listeners[event], listener{id: id, fn: fn})

	return newSubscription(func() { m.removeListener(event, id) })
}

// Off removes every listener of event.
func (m *Manager) Off(event string) {
	m.mu.Lock()
	delete(m.listeners, event)
	m.mu.Unlock()
}

// OnStatus registers fn to run on every state change.
func (m *Manager) OnStatus(fn func(State)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newSubscription(func() {})
	}

	m.nextID++
	id := m.nextID
	m.statusFns = append(m.statusFns, statusListener{id: id, fn: fn})

	return newSubscription(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.statusFns {
			if l.id == id {
				m.statusFns = append(m.statusFns[:i:i], m.statusFns[i+1:]...)
				return
			}
		}
	})
}

// Emit sends an event to the relay. It returns ErrNotConnected while the
// manager is not connected; nothing is queued for later.
func (m *Manager) Emit(event string, args ...any) error {
	packet, err := socketio.NewEvent(socketio.DefaultNamespace, event, args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state != Connected || m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteMessage(packet.Encode()); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close stops reconnecting, closes the transport and releases every
// listener. No listener runs after Close returns. Close must not be called
// from a listener.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}

	done := m.stopLocked()
	m.gen++
	m.applyLocked(triggerClose)
	m.closed = true
	m.listeners = make(map[string][]listener)
	m.statusFns = nil
	m.mu.Unlock()

	if done != nil {
		<-done
	}

	m.logger.Debug().Msg("client closed")
	return nil
}

// stopLocked cancels the connection loop and closes its transport. It
// returns the channel closed when the loop exits.
func (m *Manager) stopLocked() chan struct{} {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	done := m.done
	m.done = nil
	return done
}

// applyLocked moves the state machine along t. Entering Connected sends
// join-event for the current room before any other write can happen.
func (m *Manager) applyLocked(t trigger) (from, to State) {
	from = m.state
	to, err := next(from, t)
	if err != nil {
		m.logger.Warn().Err(err).Msg("ignoring transition")
		return from, from
	}
	m.state = to

	if to == Connected && from != Connected {
		m.joinLocked()
	}

	return from, to
}

func (m *Manager) joinLocked() {
	if m.conn == nil {
		return
	}

	packet, err := socketio.NewEvent(socketio.DefaultNamespace, joinEvent, m.room)
	if err != nil {
		return
	}
	if err := m.conn.WriteMessage(packet.Encode()); err != nil {
		m.logger.Warn().Err(err).Str("room", m.room).Msg("join failed")
		return
	}

	m.logger.Debug().Str("room", m.room).Msg("joined room")
}

// transition applies t on behalf of the loop of generation gen. It is a
// no-op for a loop that has been superseded or closed.
func (m *Manager) transition(gen uint64, t trigger) bool {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return false
	}
	from, to := m.applyLocked(t)
	notify := m.statusSnapshotLocked()
	m.mu.Unlock()

	notifyStatus(notify, from, to)
	return true
}

func (m *Manager) statusSnapshotLocked() []statusListener {
	return append([]statusListener(nil), m.statusFns...)
}

func notifyStatus(fns []statusListener, from, to State) {
	if from == to {
		return
	}
	for _, l := range fns {
		l.fn(to)
	}
}

func (m *Manager) removeListener(event string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.listeners[event]
	for i, l := range list {
		if l.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.listeners, event)
		return
	}
	m.listeners[event] = list
}

func (m *Manager) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.InitialInterval
	b.MaxInterval = m.cfg.MaxInterval
	b.RandomizationFactor = m.cfg.RandomizationFactor
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// run is the connection loop of one room. It dials, serves the connection
// until it drops, waits out the backoff and dials again until ctx ends.
func (m *Manager) run(ctx context.Context, gen uint64, room string, done chan struct{}) {
	defer close(done)

	b := m.newBackOff()
	attempt := 0
	connectedBefore := false

	m.transition(gen, triggerDial)
	for {
		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Debug().Err(err).Str("room", room).Int("attempt", attempt).Msg("connect failed")
			m.emitLocal(gen, EventConnectError, err.Error())
			m.transition(gen, triggerFailed)
		} else {
			b.Reset()
			reason := m.serve(ctx, gen, conn, connectedBefore, attempt)
			if ctx.Err() != nil {
				return
			}
			connectedBefore = true
			attempt = 0

			m.logger.Debug().Str("room", room).Str("reason", reason).Msg("connection lost")
			m.emitLocal(gen, EventDisconnect, reason)
			m.transition(gen, triggerLost)
			m.transition(gen, triggerRetry)
		}

		attempt++
		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.transition(gen, triggerDial)
	}
}

// dial opens the transport and the default namespace.
func (m *Manager) dial(ctx context.Context) (*engineio.ClientConn, error) {
	conn, err := m.dialer.Dial(ctx, m.cfg.URL)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connect := &socketio.Packet{Type: socketio.PacketTypeConnect, Namespace: socketio.DefaultNamespace}
	if err := conn.WriteMessage(connect.Encode()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open namespace: %w", err)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open namespace: %w", err)
		}

		packet, err := socketio.DecodePacket(data)
		if err != nil || packet.Namespace != socketio.DefaultNamespace {
			continue
		}

		switch packet.Type {
		case socketio.PacketTypeConnect:
			return conn, nil
		case socketio.PacketTypeConnectError:
			conn.Close()
			return nil, fmt.Errorf("namespace rejected: %s", connectErrorMessage(packet.Data))
		}
	}
}

// connectErrorMessage extracts the message of a CONNECT_ERROR payload,
// falling back to the raw payload when it has another shape.
func connectErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}

	var message string
	if err := json.Unmarshal(data, &message); err == nil && message != "" {
		return message
	}
	if len(data) == 0 {
		return "no reason given"
	}
	return string(data)
}

// serve makes conn current, reads it until it fails and returns the
// disconnect reason.
func (m *Manager) serve(ctx context.Context, gen uint64, conn *engineio.ClientConn, reconnect bool, attempt int) string {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return "io client disconnect"
	}
	m.conn = conn
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
	}()

	if !m.transition(gen, triggerEstablished) {
		return "io client disconnect"
	}
	m.emitLocal(gen, EventConnect)
	if reconnect {
		m.emitLocal(gen, EventReconnect, attempt)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return m.readFailure(ctx, gen, err)
		}

		packet, err := socketio.DecodePacket(data)
		if err != nil {
			m.logger.Debug().Err(err).Msg("dropping undecodable packet")
			continue
		}
		if packet.Namespace != socketio.DefaultNamespace {
			continue
		}

		switch packet.Type {
		case socketio.PacketTypeDisconnect:
			return "io server disconnect"
		case socketio.PacketTypeEvent:
			event, args, err := packet.Event()
			if err != nil {
				continue
			}
			m.dispatch(gen, event, args)
		}
	}
}

func (m *Manager) readFailure(ctx context.Context, gen uint64, err error) string {
	if ctx.Err() != nil {
		return "io client disconnect"
	}
	if errors.Is(err, io.EOF) {
		return "transport close"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ping timeout"
	}

	m.emitLocal(gen, EventError, err.Error())
	return "transport error"
}

// emitLocal delivers a lifecycle event to local listeners.
func (m *Manager) emitLocal(gen uint64, event string, args ...any) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			continue
		}
		raw = append(raw, data)
	}
	m.dispatch(gen, event, raw)
}

func (m *Manager) dispatch(gen uint64, event string, args []json.RawMessage) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	list := append([]listener(nil), m.listeners[event]...)
	m.mu.Unlock()

	for _, l := range list {
		if !m.registered(gen, event, l.id) {
			continue
		}
		m.invoke(event, l.fn, args)
	}
}

// registered reports whether listener id is still subscribed to event, so a
// listener disposed during a dispatch is not called afterwards.
func (m *Manager) registered(gen uint64, event string, id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		return false
	}
	for _, l := range m.listeners[event] {
		if l.id == id {
			return true
		}
	}
	return false
}

func (m *Manager) invoke(event string, fn Listener, args []json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Str("event", event).Msg("listener panicked")
		}
	}()

	fn(args)
}
