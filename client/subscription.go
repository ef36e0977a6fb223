package client

import "sync"

// Subscription is the handle returned when registering a listener. Dispose
// removes exactly that listener and may be called any number of times.
type Subscription struct {
	once    sync.Once
	dispose func()
}

func newSubscription(dispose func()) *Subscription {
	return &Subscription{dispose: dispose}
}

// Dispose releases the listener. Once it returns the listener is not started
// again; a call already running is allowed to finish.
func (s *Subscription) Dispose() {
	if s == nil {
		return
	}
	s.once.Do(s.dispose)
}
