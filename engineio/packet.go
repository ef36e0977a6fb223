package engineio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// PacketType represents Engine.IO packet types
type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop
)

// Protocol is the Engine.IO protocol revision spoken on the wire.
const Protocol = "4"

var errEmptyPacket = errors.New("empty packet")

// Packet represents an Engine.IO packet
type Packet struct {
	Type PacketType
	Data []byte
}

// Encode encodes the packet to bytes
func (p *Packet) Encode() []byte {
	result := make([]byte, 0, len(p.Data)+1)
	result = append(result, byte('0'+p.Type))
	result = append(result, p.Data...)
	return result
}

// DecodePacket decodes bytes into a packet
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, errEmptyPacket
	}

	typeChar := data[0]
	if typeChar < '0' || typeChar > '6' {
		return nil, fmt.Errorf("invalid packet type: %q", typeChar)
	}

	packet := &Packet{
		Type: PacketType(typeChar - '0'),
	}

	if len(data) > 1 {
		packet.Data = data[1:]
	}

	return packet, nil
}

// Message wraps a higher-level payload in a message packet.
func Message(data []byte) *Packet {
	return &Packet{Type: PacketTypeMessage, Data: data}
}

// HandshakeData represents the Engine.IO handshake response
type HandshakeData struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// EncodeHandshake creates an open packet with handshake data
func EncodeHandshake(sid string, cfg *Config) ([]byte, error) {
	data := HandshakeData{
		SID:          sid,
		Upgrades:     []string{}, // websocket only, nothing to upgrade to
		PingInterval: int(cfg.PingInterval.Milliseconds()),
		PingTimeout:  int(cfg.PingTimeout.Milliseconds()),
		MaxPayload:   cfg.MaxPayload,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	packet := &Packet{
		Type: PacketTypeOpen,
		Data: jsonData,
	}

	return packet.Encode(), nil
}

// DecodeHandshake parses the payload of an open packet.
func DecodeHandshake(packet *Packet) (*HandshakeData, error) {
	if packet.Type != PacketTypeOpen {
		return nil, fmt.Errorf("expected open packet, got %s", packet.Type)
	}

	var hs HandshakeData
	if err := json.Unmarshal(packet.Data, &hs); err != nil {
		return nil, fmt.Errorf("failed to decode handshake: %w", err)
	}
	if hs.SID == "" {
		return nil, errors.New("handshake without sid")
	}

	return &hs, nil
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeOpen:
		return "open"
	case PacketTypeClose:
		return "close"
	case PacketTypePing:
		return "ping"
	case PacketTypePong:
		return "pong"
	case PacketTypeMessage:
		return "message"
	case PacketTypeUpgrade:
		return "upgrade"
	case PacketTypeNoop:
		return "noop"
	default:
		return "unknown(" + strconv.Itoa(int(pt)) + ")"
	}
}
