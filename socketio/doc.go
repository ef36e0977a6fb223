// Package socketio implements the server side of the Socket.IO v4 protocol
// on top of the websocket-only Engine.IO transport in package engineio.
//
// It covers the subset a room-scoped event relay needs: namespaces, rooms,
// text events and broadcasting. Acknowledgements and binary attachments are
// not supported.
//
// # Quick Start
//
//	server := socketio.NewServer(&socketio.Config{
//	    Path:   "/api/socket",
//	    Logger: logger,
//	})
//
//	server.OnConnect(func(socket *socketio.Socket) {
//	    socket.On("join-event", func(args []json.RawMessage) {
//	        socket.Join("42")
//	    })
//
//	    socket.OnDisconnect(func(reason string) {
//	        logger.Info().Str("reason", reason).Msg("client left")
//	    })
//	})
//
//	http.Handle("/api/socket/", server)
//
// # Rooms
//
// Every socket joins a room named after its own ID. Rooms are created on
// first join and discarded when their last member leaves.
//
//	socket.Join("42")
//	server.To("42").Emit("display-question", map[string]any{"questionId": 7})
//	socket.Leave("42")
//
// # Ordering
//
// Inbound packets of one connection are handled sequentially on its read
// goroutine. Broadcasts enqueue onto every recipient's outbound queue before
// returning, so each recipient observes broadcasts in the order they were
// made. A recipient whose queue is full is disconnected.
//
// # Multiple instances
//
// The room registry is pluggable through Config.Adapter. NewRedisAdapterFactory
// relays broadcasts between instances over Redis pub/sub while membership
// stays local to each process.
package socketio
