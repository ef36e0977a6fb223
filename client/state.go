package client

import "fmt"

// State is the connectivity status of a Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type trigger int

const (
	triggerDial        trigger = iota // a dial attempt starts
	triggerEstablished                // transport and namespace handshake done
	triggerFailed                     // the dial attempt failed
	triggerLost                       // an established connection dropped
	triggerRetry                      // waiting before the next attempt
	triggerStop                       // the room was cleared or replaced
	triggerClose                      // the manager was closed
)

func (t trigger) String() string {
	switch t {
	case triggerDial:
		return "dial"
	case triggerEstablished:
		return "established"
	case triggerFailed:
		return "failed"
	case triggerLost:
		return "lost"
	case triggerRetry:
		return "retry"
	case triggerStop:
		return "stop"
	case triggerClose:
		return "close"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

var transitions = map[State]map[trigger]State{
	Disconnected: {
		triggerDial:  Connecting,
		triggerRetry: Reconnecting,
		triggerStop:  Disconnected,
		triggerClose: Closed,
	},
	Connecting: {
		triggerEstablished: Connected,
		triggerFailed:      Reconnecting,
		triggerStop:        Disconnected,
		triggerClose:       Closed,
	},
	Connected: {
		triggerLost:  Disconnected,
		triggerStop:  Disconnected,
		triggerClose: Closed,
	},
	Reconnecting: {
		triggerDial:  Connecting,
		triggerStop:  Disconnected,
		triggerClose: Closed,
	},
	Closed: {},
}

// next returns the state that t leads to from s.
func next(s State, t trigger) (State, error) {
	to, ok := transitions[s][t]
	if !ok {
		return s, fmt.Errorf("illegal transition %s from %s", t, s)
	}
	return to, nil
}
