package engineio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens client-side Engine.IO connections over WebSocket.
type Dialer struct {
	// Path is the endpoint path shared with the server, e.g. "/api/socket".
	Path             string
	Header           http.Header
	HandshakeTimeout time.Duration
}

// ClientConn is the client end of an Engine.IO session.
type ClientConn struct {
	ws        *websocket.Conn
	handshake HandshakeData
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// EndpointURL builds the websocket URL for a base address such as
// "http://localhost:3000" and an endpoint path.
func EndpointURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if path == "" {
		path = "/socket.io"
	}
	u.Path = strings.TrimSuffix(path, "/") + "/"
	u.RawQuery = url.Values{"EIO": {Protocol}, "transport": {"websocket"}}.Encode()

	return u.String(), nil
}

// Dial connects to base and completes the Engine.IO handshake.
func (d *Dialer) Dial(ctx context.Context, base string) (*ClientConn, error) {
	endpoint, err := EndpointURL(base, d.Path)
	if err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	wsDialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	ws, resp, err := wsDialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	ws.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}

	packet, err := DecodePacket(data)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	hs, err := DecodeHandshake(packet)
	if err != nil {
		ws.Close()
		return nil, err
	}

	return &ClientConn{ws: ws, handshake: *hs}, nil
}

// SID returns the session id assigned by the server.
func (c *ClientConn) SID() string {
	return c.handshake.SID
}

// Handshake returns the negotiated session parameters.
func (c *ClientConn) Handshake() HandshakeData {
	return c.handshake
}

// ReadMessage returns the payload of the next message packet. Heartbeat
// pings are answered transparently. io.EOF reports a server close packet.
func (c *ClientConn) ReadMessage() ([]byte, error) {
	deadline := time.Duration(c.handshake.PingInterval+c.handshake.PingTimeout) * time.Millisecond

	for {
		if deadline > 0 {
			c.ws.SetReadDeadline(time.Now().Add(deadline))
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}

		packet, err := DecodePacket(data)
		if err != nil {
			continue
		}

		switch packet.Type {
		case PacketTypePing:
			if err := c.write(&Packet{Type: PacketTypePong, Data: packet.Data}); err != nil {
				return nil, err
			}
		case PacketTypeMessage:
			return packet.Data, nil
		case PacketTypeClose:
			return nil, io.EOF
		}
	}
}

// WriteMessage sends data in a message packet.
func (c *ClientConn) WriteMessage(data []byte) error {
	return c.write(Message(data))
}

// Close sends a close packet and releases the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.write(&Packet{Type: PacketTypeClose})
		err = c.ws.Close()
	})
	return err
}

func (c *ClientConn) write(packet *Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, packet.Encode()); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return io.EOF
		}
		return err
	}
	return nil
}
