package socketio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	id := 12

	tests := []struct {
		name    string
		input   string
		want    *Packet
		wantErr bool
	}{
		{
			name:  "connect default namespace",
			input: "0",
			want:  &Packet{Type: PacketTypeConnect, Namespace: "/"},
		},
		{
			name:  "connect custom namespace without payload",
			input: "0/admin",
			want:  &Packet{Type: PacketTypeConnect, Namespace: "/admin"},
		},
		{
			name:  "event",
			input: `2["join-event","42"]`,
			want:  &Packet{Type: PacketTypeEvent, Namespace: "/", Data: json.RawMessage(`["join-event","42"]`)},
		},
		{
			name:  "event with namespace and ack id",
			input: `2/admin,12["x",{"a":1}]`,
			want:  &Packet{Type: PacketTypeEvent, Namespace: "/admin", ID: &id, Data: json.RawMessage(`["x",{"a":1}]`)},
		},
		{
			name:  "disconnect",
			input: "1",
			want:  &Packet{Type: PacketTypeDisconnect, Namespace: "/"},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "bad type", input: "7", wantErr: true},
		{name: "binary event unsupported", input: `51-["x",{"_placeholder":true,"num":0}]`, wantErr: true},
		{name: "invalid json payload", input: `2["x",`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePacket([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPacketEncode(t *testing.T) {
	id := 3

	assert.Equal(t, `0{"sid":"abc"}`, string((&Packet{Type: PacketTypeConnect, Namespace: "/", Data: json.RawMessage(`{"sid":"abc"}`)}).Encode()))
	assert.Equal(t, `2/admin,3["x"]`, string((&Packet{Type: PacketTypeEvent, Namespace: "/admin", ID: &id, Data: json.RawMessage(`["x"]`)}).Encode()))
	assert.Equal(t, "1", string((&Packet{Type: PacketTypeDisconnect}).Encode()))
}

func TestNewEventAndEvent(t *testing.T) {
	packet, err := NewEvent("/", "update-results", map[string]int{"questionId": 7})
	require.NoError(t, err)
	assert.Equal(t, `2["update-results",{"questionId":7}]`, string(packet.Encode()))

	name, args, err := packet.Event()
	require.NoError(t, err)
	assert.Equal(t, "update-results", name)
	require.Len(t, args, 1)
	assert.JSONEq(t, `{"questionId":7}`, string(args[0]))
}

func TestEvent_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		packet *Packet
	}{
		{"not an event", &Packet{Type: PacketTypeConnect}},
		{"no payload", &Packet{Type: PacketTypeEvent}},
		{"empty array", &Packet{Type: PacketTypeEvent, Data: json.RawMessage(`[]`)}},
		{"object payload", &Packet{Type: PacketTypeEvent, Data: json.RawMessage(`{"a":1}`)}},
		{"numeric name", &Packet{Type: PacketTypeEvent, Data: json.RawMessage(`[1,2]`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.packet.Event()
			assert.Error(t, err)
		})
	}
}
