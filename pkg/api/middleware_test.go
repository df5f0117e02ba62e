package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/jobs/:kind", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/api/v1/devices/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name     string
		method   string
		path     string
		reqID    string
		level    string
		field    string
		value    string
		duration string
	}{
		{name: "health polls are quiet", method: http.MethodGet, path: "/health", level: "debug", duration: "latency"},
		{name: "job conflict warns with kind", method: http.MethodPost, path: "/api/v1/jobs/sync", level: "warn", field: "job_kind", value: "sync", duration: "latency"},
		{name: "device route tagged", method: http.MethodGet, path: "/api/v1/devices/11.11.11", reqID: "abc", level: "info", field: "target", value: "11.11.11", duration: "latency"},
		{name: "unknown route warns", method: http.MethodGet, path: "/nope", level: "warn", duration: "latency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.reqID != "" {
				req.Header.Set(RequestIDHeader, tt.reqID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			id := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, id)
			if tt.reqID != "" {
				assert.Equal(t, tt.reqID, id)
			}

			entry := lastLine(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, id, entry["request_id"])
			assert.Equal(t, tt.path, entry["path"])
			assert.Contains(t, entry, tt.duration)
			if tt.field != "" {
				assert.Equal(t, tt.value, entry[tt.field])
			}
		})
	}
}
