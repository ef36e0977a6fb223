package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check is the outcome of one dependency check.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health reports the relay and, when a backplane is configured, Redis.
// A relay that has not been built yet is healthy; it is built on the first
// connection.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Checks:    map[string]Check{"relay": h.relayCheck()},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.redis != nil {
		check := h.redisCheck(r.Context())
		resp.Checks["redis"] = check
		if check.Status != "pass" {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.JSON(w, status, resp)
}

func (h *Handler) relayCheck() Check {
	if _, ok := h.relays.Current(); !ok {
		return Check{Status: "pass", Message: "not initialized"}
	}
	return Check{Status: "pass"}
}

// redisCheck pings the backplane. A relay cut off from it still serves its
// own clients, so only the health status degrades.
func (h *Handler) redisCheck(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return Check{Status: "fail", Message: "backplane unreachable"}
	}
	return Check{Status: "pass", Latency: time.Since(start).String()}
}
