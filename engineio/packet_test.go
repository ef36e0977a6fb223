package engineio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType PacketType
		wantData string
		wantErr  bool
	}{
		{name: "ping", input: "2", wantType: PacketTypePing},
		{name: "ping with probe", input: "2probe", wantType: PacketTypePing, wantData: "probe"},
		{name: "message", input: `442["x"]`, wantType: PacketTypeMessage, wantData: `42["x"]`},
		{name: "close", input: "1", wantType: PacketTypeClose},
		{name: "empty", input: "", wantErr: true},
		{name: "out of range", input: "9", wantErr: true},
		{name: "not a digit", input: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, err := DecodePacket([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, packet.Type)
			assert.Equal(t, tt.wantData, string(packet.Data))
		})
	}
}

func TestHandshake(t *testing.T) {
	cfg := &Config{PingInterval: 25 * time.Second, PingTimeout: 20 * time.Second, MaxPayload: 1000}

	raw, err := EncodeHandshake("abc", cfg)
	require.NoError(t, err)
	assert.Equal(t, byte('0'), raw[0])

	packet, err := DecodePacket(raw)
	require.NoError(t, err)

	hs, err := DecodeHandshake(packet)
	require.NoError(t, err)
	assert.Equal(t, "abc", hs.SID)
	assert.Equal(t, 25000, hs.PingInterval)
	assert.Equal(t, 20000, hs.PingTimeout)
	assert.Equal(t, 1000, hs.MaxPayload)
	assert.Empty(t, hs.Upgrades)
}

func TestDecodeHandshake_Rejects(t *testing.T) {
	_, err := DecodeHandshake(&Packet{Type: PacketTypeMessage, Data: []byte(`{"sid":"a"}`)})
	assert.Error(t, err)

	_, err = DecodeHandshake(&Packet{Type: PacketTypeOpen, Data: []byte(`{}`)})
	assert.Error(t, err)

	_, err = DecodeHandshake(&Packet{Type: PacketTypeOpen, Data: []byte(`nope`)})
	assert.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base, path, want string
		wantErr          bool
	}{
		{"http://localhost:3000", "/api/socket", "ws://localhost:3000/api/socket/?EIO=4&transport=websocket", false},
		{"https://polls.example.com", "/api/socket/", "wss://polls.example.com/api/socket/?EIO=4&transport=websocket", false},
		{"ws://127.0.0.1:1", "", "ws://127.0.0.1:1/socket.io/?EIO=4&transport=websocket", false},
		{"ftp://x", "/a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := EndpointURL(tt.base, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
