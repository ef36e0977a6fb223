package handlers

import (
	"net/http"
	"time"

	"github.com/sasagar/rtsv/relay"
)

// StatsResponse represents the stats endpoint response.
type StatsResponse struct {
	Initialized bool        `json:"initialized"`
	Backplane   bool        `json:"backplane"`
	Relay       relay.Stats `json:"relay"`
	Timestamp   string      `json:"timestamp"`
}

// Stats handles the stats endpoint. Counts cover this process only.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Backplane: h.redis != nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if rl, ok := h.relays.Current(); ok {
		resp.Initialized = true
		resp.Relay = rl.Stats()
	}

	h.JSON(w, http.StatusOK, resp)
}
