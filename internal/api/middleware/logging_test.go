package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   zerolog.Level
	}{
		{"/stats", http.StatusOK, zerolog.InfoLevel},
		{"/api/socket", http.StatusSwitchingProtocols, zerolog.InfoLevel},
		{"/health", http.StatusOK, zerolog.DebugLevel},
		{"/metrics", http.StatusOK, zerolog.DebugLevel},
		{"/health", http.StatusServiceUnavailable, zerolog.ErrorLevel},
		{"/api/socket", http.StatusBadRequest, zerolog.WarnLevel},
		{"/stats", http.StatusInternalServerError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, accessLevel(tt.path, tt.status))
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":0}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/socket?transport=polling", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/api/socket", entry["path"])
	assert.Equal(t, float64(http.StatusBadRequest), entry["status"])
	assert.Equal(t, float64(10), entry["bytes"])
	assert.Equal(t, false, entry["upgrade"])
}
