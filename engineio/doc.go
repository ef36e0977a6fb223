// Package engineio implements Engine.IO v4 over WebSocket, both the server
// side and a client Dialer.
//
// Only the websocket transport is served. HTTP long-polling requests,
// including the initial polling handshake that Socket.IO clients send by
// default, are answered with 400 and the Engine.IO "Transport unknown"
// error. Browser clients must connect with the websocket transport, e.g.
//
//	io(url, { path: "/api/socket", transports: ["websocket"] })
//
// A client configured with transports: ["polling"] cannot connect.
package engineio
