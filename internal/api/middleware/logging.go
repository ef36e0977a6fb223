package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a zerolog access log middleware. WebSocket upgrades are
// logged when the connection is handed over, not when it ends; scrapes of
// /metrics and /health only show at debug level.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			upgrade := strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
			if upgrade && status == 0 {
				status = http.StatusSwitchingProtocols
			}

			event := logger.WithLevel(accessLevel(r.URL.Path, status))
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Bool("upgrade", upgrade).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		})
	}
}

func accessLevel(path string, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case path == "/metrics" || path == "/health":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
