package socketio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeliverer struct {
	mu       sync.Mutex
	received map[string][]string
	offline  map[string]bool
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{received: make(map[string][]string), offline: make(map[string]bool)}
}

func (d *recordingDeliverer) Deliver(socketID string, encoded []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline[socketID] {
		return false
	}
	d.received[socketID] = append(d.received[socketID], string(encoded))
	return true
}

func (d *recordingDeliverer) get(socketID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received[socketID]
}

func event(t *testing.T, name string) *Packet {
	t.Helper()
	p, err := NewEvent("/", name)
	require.NoError(t, err)
	return p
}

func TestMemoryAdapter_JoinIsIdempotent(t *testing.T) {
	a := NewMemoryAdapter(newRecordingDeliverer())

	for i := 0; i < 3; i++ {
		a.Add("c1", "42")
	}
	a.Add("c2", "42")

	assert.ElementsMatch(t, []string{"c1", "c2"}, a.Sockets("42"))
	assert.Equal(t, []string{"42"}, a.SocketRooms("c1"))
}

func TestMemoryAdapter_Remove(t *testing.T) {
	a := NewMemoryAdapter(newRecordingDeliverer())
	a.Add("c1", "42")
	a.Add("c2", "42")

	a.Remove("c1", "42")
	assert.Equal(t, []string{"c2"}, a.Sockets("42"))
	assert.Empty(t, a.SocketRooms("c1"))

	a.Remove("c2", "42")
	assert.Empty(t, a.Rooms(), "empty room should be discarded")

	// Removing from an unknown room is a no-op.
	a.Remove("c3", "nope")
}

func TestMemoryAdapter_Rooms(t *testing.T) {
	a := NewMemoryAdapter(newRecordingDeliverer())
	assert.Empty(t, a.Rooms())

	a.Add("c1", "42")
	a.Add("c2", "42")
	a.Add("c2", "99")
	assert.ElementsMatch(t, []string{"42", "99"}, a.Rooms())

	a.Remove("c2", "99")
	assert.Equal(t, []string{"42"}, a.Rooms())
}

func TestMemoryAdapter_RemoveAll(t *testing.T) {
	tests := []struct {
		name  string
		rooms []string
	}{
		{"no rooms", nil},
		{"one room", []string{"42"}},
		{"many rooms", []string{"1", "2", "3", "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewMemoryAdapter(newRecordingDeliverer())
			a.Add("other", "42")
			for _, r := range tt.rooms {
				a.Add("c1", r)
			}

			a.RemoveAll("c1")

			assert.Empty(t, a.SocketRooms("c1"))
			for _, r := range tt.rooms {
				assert.NotContains(t, a.Sockets(r), "c1")
			}
			assert.Equal(t, []string{"42"}, a.Rooms())
		})
	}
}

func TestMemoryAdapter_BroadcastReachesMembersAtCallTime(t *testing.T) {
	d := newRecordingDeliverer()
	a := NewMemoryAdapter(d)

	a.Add("stays", "42")
	a.Add("leaves", "42")
	a.Add("elsewhere", "99")
	a.Remove("leaves", "42")

	n, err := a.Broadcast(event(t, "display-question"), BroadcastOptions{Rooms: []string{"42"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a.Add("late", "42")

	assert.Len(t, d.get("stays"), 1)
	assert.Empty(t, d.get("leaves"))
	assert.Empty(t, d.get("elsewhere"))
	assert.Empty(t, d.get("late"), "joining after a broadcast must not replay it")
}

func TestMemoryAdapter_BroadcastOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      BroadcastOptions
		wantCount int
		want      map[string]int
	}{
		{
			name:      "single room",
			opts:      BroadcastOptions{Rooms: []string{"42"}},
			wantCount: 2,
			want:      map[string]int{"a": 1, "b": 1, "c": 0},
		},
		{
			name:      "except sender",
			opts:      BroadcastOptions{Rooms: []string{"42"}, Except: []string{"a"}},
			wantCount: 1,
			want:      map[string]int{"a": 0, "b": 1, "c": 0},
		},
		{
			name:      "overlapping rooms deliver once",
			opts:      BroadcastOptions{Rooms: []string{"42", "all"}},
			wantCount: 3,
			want:      map[string]int{"a": 1, "b": 1, "c": 1},
		},
		{
			name:      "no rooms means everyone",
			opts:      BroadcastOptions{},
			wantCount: 3,
			want:      map[string]int{"a": 1, "b": 1, "c": 1},
		},
		{
			name:      "unknown room",
			opts:      BroadcastOptions{Rooms: []string{"nope"}},
			wantCount: 0,
			want:      map[string]int{"a": 0, "b": 0, "c": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newRecordingDeliverer()
			a := NewMemoryAdapter(d)
			a.Add("a", "42")
			a.Add("b", "42")
			a.Add("c", "99")
			for _, id := range []string{"a", "b", "c"} {
				a.Add(id, "all")
			}

			n, err := a.Broadcast(event(t, "x"), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, n)
			for id, count := range tt.want {
				assert.Len(t, d.get(id), count, "socket %s", id)
			}
		})
	}
}

func TestMemoryAdapter_BroadcastSkipsDepartedSockets(t *testing.T) {
	d := newRecordingDeliverer()
	d.offline["gone"] = true
	a := NewMemoryAdapter(d)
	a.Add("gone", "42")
	a.Add("here", "42")

	n, err := a.Broadcast(event(t, "x"), BroadcastOptions{Rooms: []string{"42"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryAdapter_BroadcastPreservesOrder(t *testing.T) {
	d := newRecordingDeliverer()
	a := NewMemoryAdapter(d)
	a.Add("r", "42")

	names := []string{"open-question", "close-question", "display-question", "hide-results"}
	for _, name := range names {
		_, err := a.Broadcast(event(t, name), BroadcastOptions{Rooms: []string{"42"}})
		require.NoError(t, err)
	}

	got := d.get("r")
	require.Len(t, got, len(names))
	for i, name := range names {
		assert.Equal(t, `2["`+name+`"]`, got[i])
	}
}

func TestMemoryAdapter_Close(t *testing.T) {
	a := NewMemoryAdapter(newRecordingDeliverer())
	a.Add("c1", "42")

	require.NoError(t, a.Close())
	assert.Empty(t, a.Rooms())
	assert.Empty(t, a.SocketRooms("c1"))
}
