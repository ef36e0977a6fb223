package relay

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagar/rtsv/client"
	"github.com/sasagar/rtsv/socketio"
)

type received struct {
	event   string
	payload string
}

func newTestRelay(t *testing.T, cfg *Config) (*Relay, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Logger = zerolog.Nop()

	r := New(cfg)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		r.Close()
		ts.Close()
	})
	return r, ts
}

// joinClient connects a client manager to room and waits until the relay
// lists it as a member.
func joinClient(t *testing.T, r *Relay, ts *httptest.Server, room string) *client.Manager {
	t.Helper()

	before := len(r.Server().Of(socketio.DefaultNamespace).Adapter().Sockets(room))

	m := client.New(&client.Config{
		URL:             ts.URL,
		Path:            DefaultPath,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		Logger:          zerolog.Nop(),
	})
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(room))
	waitMembers(t, r, room, before+1)

	return m
}

func waitMembers(t *testing.T, r *Relay, room string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(r.Server().Of(socketio.DefaultNamespace).Adapter().Sockets(room)) == n
	}, 2*time.Second, 10*time.Millisecond, "room %s never reached %d members", room, n)
}

func record(m *client.Manager, events ...string) <-chan received {
	ch := make(chan received, 64)
	for _, event := range events {
		event := event
		m.On(event, func(args []json.RawMessage) {
			payload := "null"
			if len(args) > 0 {
				payload = string(args[0])
			}
			ch <- received{event: event, payload: payload}
		})
	}
	return ch
}

func nextEvent(t *testing.T, ch <-chan received) received {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return received{}
	}
}

var allOutgoing = []string{
	EventOpenQuestion, EventCloseQuestion, EventDeleteQuestion, EventUpdateResults,
	EventDisplayQuestion, EventHideResults, EventAnswerPicked, EventAnswerHidden,
}

func TestRelay_NewAnswerReachesOnlyItsRoom(t *testing.T) {
	r, ts := newTestRelay(t, nil)

	a := joinClient(t, r, ts, "42")
	b := joinClient(t, r, ts, "42")
	c := joinClient(t, r, ts, "99")
	atB := record(b, allOutgoing...)
	atC := record(c, allOutgoing...)

	require.NoError(t, a.Emit(EventNewAnswer, map[string]int{"questionId": 7, "eventId": 42}))
	require.NoError(t, a.Emit(EventHideResults, map[string]int{"eventId": 99}))

	got := nextEvent(t, atB)
	assert.Equal(t, EventUpdateResults, got.event)
	assert.JSONEq(t, `{"questionId":7}`, got.payload)

	// Had the update leaked into room 99 it would precede the hide.
	got = nextEvent(t, atC)
	assert.Equal(t, EventHideResults, got.event)
	assert.JSONEq(t, `{"eventId":99}`, got.payload)
}

func TestRelay_SenderReceivesItsOwnBroadcast(t *testing.T) {
	r, ts := newTestRelay(t, nil)

	a := joinClient(t, r, ts, "42")
	atA := record(a, allOutgoing...)

	require.NoError(t, a.Emit(EventDisplayQuestion, map[string]any{"questionId": 7, "eventId": "42"}))

	got := nextEvent(t, atA)
	assert.Equal(t, EventDisplayQuestion, got.event)
	assert.JSONEq(t, `{"questionId":7,"eventId":"42"}`, got.payload)
}

func TestRelay_ExcludeSender(t *testing.T) {
	r, ts := newTestRelay(t, &Config{ExcludeSender: true})

	a := joinClient(t, r, ts, "42")
	b := joinClient(t, r, ts, "42")
	atA := record(a, allOutgoing...)
	atB := record(b, allOutgoing...)

	require.NoError(t, a.Emit(EventCloseQuestion, map[string]int{"questionId": 1, "eventId": 42}))
	got := nextEvent(t, atB)
	assert.Equal(t, EventCloseQuestion, got.event)
	assert.Equal(t, "1", got.payload)

	require.NoError(t, b.Emit(EventDeleteQuestion, map[string]int{"questionId": 2, "eventId": 42}))
	got = nextEvent(t, atA)
	assert.Equal(t, EventDeleteQuestion, got.event, "sender must not see its own close-question")
	assert.Equal(t, "2", got.payload)
}

func TestRelay_RequireMembership(t *testing.T) {
	r, ts := newTestRelay(t, &Config{RequireMembership: true})

	a := joinClient(t, r, ts, "42")
	b := joinClient(t, r, ts, "42")
	c := joinClient(t, r, ts, "99")
	atB := record(b, allOutgoing...)
	atC := record(c, allOutgoing...)

	// c addresses a room it never joined, then its own room.
	require.NoError(t, c.Emit(EventHideResults, map[string]int{"eventId": 42}))
	require.NoError(t, c.Emit(EventHideResults, map[string]int{"eventId": 99}))
	assert.Equal(t, received{EventHideResults, `{"eventId":99}`}, nextEvent(t, atC))

	require.NoError(t, a.Emit(EventOpenQuestion, map[string]any{"id": 5, "event_id": 42}))
	got := nextEvent(t, atB)
	assert.Equal(t, EventOpenQuestion, got.event)
	assert.JSONEq(t, `{"id":5,"event_id":42}`, got.payload)
}

func TestRelay_UnroutableMessageIsDropped(t *testing.T) {
	r, ts := newTestRelay(t, nil)

	a := joinClient(t, r, ts, "42")
	b := joinClient(t, r, ts, "42")
	atB := record(b, allOutgoing...)

	require.NoError(t, a.Emit(EventCloseQuestion, map[string]int{"questionId": 1}))
	require.NoError(t, a.Emit(EventNewAnswer, nil))
	require.NoError(t, a.Emit("shout", map[string]int{"eventId": 42}))
	require.NoError(t, a.Emit(EventDisplayQuestion, map[string]int{"questionId": 2, "eventId": 42}))

	got := nextEvent(t, atB)
	assert.Equal(t, EventDisplayQuestion, got.event)
	assert.True(t, a.Connected(), "a bad message must not disconnect its sender")
}

func TestRelay_RejoinsAfterReconnect(t *testing.T) {
	r, ts := newTestRelay(t, nil)
	ns := r.Server().Of(socketio.DefaultNamespace)

	a := joinClient(t, r, ts, "42")
	sockets := ns.Sockets()
	require.Len(t, sockets, 1)
	first := sockets[0]

	b := joinClient(t, r, ts, "42")

	reconnected := make(chan struct{}, 1)
	a.On(client.EventReconnect, func([]json.RawMessage) { reconnected <- struct{}{} })
	atA := record(a, EventDisplayQuestion)

	first.Disconnect()

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("client did not reconnect")
	}

	require.Eventually(t, func() bool {
		members := ns.Adapter().Sockets("42")
		if len(members) != 2 {
			return false
		}
		for _, id := range members {
			if id == first.ID() {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Emit(EventDisplayQuestion, map[string]int{"questionId": 7, "eventId": 42}))

	got := nextEvent(t, atA)
	assert.Equal(t, EventDisplayQuestion, got.event)
	assert.JSONEq(t, `{"questionId":7,"eventId":42}`, got.payload)
}

func TestRelay_PreservesSenderOrder(t *testing.T) {
	r, ts := newTestRelay(t, nil)

	a := joinClient(t, r, ts, "42")
	b := joinClient(t, r, ts, "42")
	c := joinClient(t, r, ts, "42")
	receivers := []<-chan received{
		record(a, EventOpenQuestion, EventCloseQuestion),
		record(b, EventOpenQuestion, EventCloseQuestion),
		record(c, EventOpenQuestion, EventCloseQuestion),
	}

	const rounds = 10
	for i := 0; i < rounds; i++ {
		require.NoError(t, a.Emit(EventOpenQuestion, map[string]int{"id": i, "event_id": 42}))
		require.NoError(t, a.Emit(EventCloseQuestion, map[string]int{"questionId": i, "eventId": 42}))
	}

	for _, ch := range receivers {
		for i := 0; i < rounds; i++ {
			open := nextEvent(t, ch)
			require.Equal(t, EventOpenQuestion, open.event)
			assert.JSONEq(t, `{"id":`+itoa(i)+`,"event_id":42}`, open.payload)

			closed := nextEvent(t, ch)
			require.Equal(t, EventCloseQuestion, closed.event)
			assert.Equal(t, itoa(i), closed.payload)
		}
	}
}

func TestRelay_Stats(t *testing.T) {
	r, ts := newTestRelay(t, nil)

	assert.Equal(t, Stats{}, r.Stats())

	joinClient(t, r, ts, "42")
	joinClient(t, r, ts, "42")
	c := joinClient(t, r, ts, "99")

	assert.Equal(t, Stats{Connections: 3, Rooms: 2}, r.Stats())

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return r.Stats() == Stats{Connections: 2, Rooms: 1}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", DefaultPath},
		{"/", DefaultPath},
		{"api/socket", "/api/socket"},
		{"/api/socket/", "/api/socket"},
		{" realtime ", "/realtime"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.input))
		})
	}
}

func TestRelay_RelativePathIsServed(t *testing.T) {
	r, ts := newTestRelay(t, &Config{Path: "api/socket"})
	assert.Equal(t, DefaultPath, r.Path())

	joinClient(t, r, ts, "42")
}

func itoa(i int) string {
	data, _ := json.Marshal(i)
	return string(data)
}
