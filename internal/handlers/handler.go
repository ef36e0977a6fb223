package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/sasagar/rtsv/relay"
)

// RelaySource reports the process relay once it has been built.
type RelaySource interface {
	Current() (*relay.Relay, bool)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	relays RelaySource
	redis  *redis.Client
}

// NewHandler creates a new Handler. redis may be nil when no backplane is
// configured.
func NewHandler(relays RelaySource, redis *redis.Client) *Handler {
	return &Handler{relays: relays, redis: redis}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
