package relay

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Provider hands out a single process-wide Relay, building it on first use.
// Concurrent first callers block until the winner has finished building; a
// failed build is not cached and the next caller retries.
type Provider struct {
	mu     sync.Mutex
	relay  *Relay
	build  func() (*Relay, error)
	logger zerolog.Logger
}

// NewProvider returns a Provider that builds its relay with build.
func NewProvider(build func() (*Relay, error), logger zerolog.Logger) *Provider {
	return &Provider{build: build, logger: logger}
}

// Get returns the relay, building it if this is the first successful call.
func (p *Provider) Get() (*Relay, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.relay != nil {
		return p.relay, nil
	}

	relay, err := p.build()
	if err != nil {
		return nil, fmt.Errorf("initializing relay: %w", err)
	}

	p.relay = relay
	p.logger.Info().Str("path", relay.Path()).Msg("relay initialized")

	return relay, nil
}

// Current returns the relay if it has been built.
func (p *Provider) Current() (*Relay, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.relay, p.relay != nil
}

// ServeHTTP initializes the relay on the first request and hands every
// request to it.
func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	relay, err := p.Get()
	if err != nil {
		p.logger.Error().Err(err).Msg("relay unavailable")
		http.Error(w, "Error initializing relay server", http.StatusInternalServerError)
		return
	}

	relay.ServeHTTP(w, r)
}

// Close closes the relay if it was built.
func (p *Provider) Close() error {
	p.mu.Lock()
	relay := p.relay
	p.relay = nil
	p.mu.Unlock()

	if relay == nil {
		return nil
	}
	return relay.Close()
}
