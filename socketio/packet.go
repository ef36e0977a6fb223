package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PacketType represents Socket.IO packet types
type PacketType int

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck
)

// DefaultNamespace is the namespace clients join when none is given.
const DefaultNamespace = "/"

var (
	errEmptyPacket  = errors.New("empty packet")
	errNotAnEvent   = errors.New("packet is not an event")
	errMissingEvent = errors.New("event packet without a name")
)

// Packet represents a Socket.IO packet. Data holds the raw JSON payload.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        *int
	Data      json.RawMessage
}

// NewEvent builds an event packet whose payload is [event, args...].
func NewEvent(namespace, event string, args ...any) (*Packet, error) {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, event)
	payload = append(payload, args...)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %q: %w", event, err)
	}

	return &Packet{Type: PacketTypeEvent, Namespace: namespace, Data: data}, nil
}

// Event splits an event packet into its name and raw arguments.
func (p *Packet) Event() (string, []json.RawMessage, error) {
	if p.Type != PacketTypeEvent {
		return "", nil, errNotAnEvent
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil || len(parts) == 0 {
		return "", nil, errMissingEvent
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil || name == "" {
		return "", nil, errMissingEvent
	}

	return name, parts[1:], nil
}

// Encode encodes a Socket.IO packet to its text form.
func (p *Packet) Encode() []byte {
	var b strings.Builder

	b.WriteString(strconv.Itoa(int(p.Type)))

	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}

	if p.ID != nil {
		b.WriteString(strconv.Itoa(*p.ID))
	}

	b.Write(p.Data)

	return []byte(b.String())
}

// DecodePacket decodes a Socket.IO packet from its text form
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, errEmptyPacket
	}

	packet := &Packet{Namespace: DefaultNamespace}

	if data[0] < '0' || data[0] > '6' {
		return nil, fmt.Errorf("invalid packet type: %q", data[0])
	}
	packet.Type = PacketType(data[0] - '0')
	rest := data[1:]

	if packet.Type == PacketTypeBinaryEvent || packet.Type == PacketTypeBinaryAck {
		return nil, fmt.Errorf("unsupported packet type: %s", packet.Type)
	}

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end == -1 {
			packet.Namespace = string(rest)
			return packet, nil
		}
		packet.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return nil, fmt.Errorf("invalid ack id: %w", err)
		}
		packet.ID = &id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return nil, errors.New("invalid packet payload")
		}
		packet.Data = json.RawMessage(rest)
	}

	return packet, nil
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeConnect:
		return "connect"
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeConnectError:
		return "connect_error"
	case PacketTypeBinaryEvent:
		return "binary_event"
	case PacketTypeBinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}
