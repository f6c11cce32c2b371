package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/petcare-user/pkg/logger"
)

func TestRequestLogging_EchoesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "INFO", out["level"])
	assert.Equal(t, float64(http.StatusCreated), out["status"])
	assert.Equal(t, "/auth/register", out["path"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(newTestLogger(&buf))(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Len(t, rec.Header().Get("X-Correlation-ID"), 36)
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/health/ready", http.StatusOK, "DEBUG"},
		{"/metrics", http.StatusOK, "DEBUG"},
		{"/health/ready", http.StatusServiceUnavailable, "ERROR"},
		{"/auth/login", http.StatusInternalServerError, "ERROR"},
		{"/auth/login", http.StatusUnauthorized, "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.path+"_"+http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			h := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			var out map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
			assert.Equal(t, tt.level, out["level"])
		})
	}
}

func TestStatusRecorder_CountsBytesAndKeepsFirstStatus(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusAccepted)
	rec.WriteHeader(http.StatusTeapot)
	n, err := rec.Write([]byte(strings.Repeat("x", 10)))

	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, rec.bytes)
	assert.Equal(t, http.StatusAccepted, rec.status)
}

func TestStatusRecorder_SupportsResponseController(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := newStatusRecorder(inner)

	require.NoError(t, http.NewResponseController(rec).Flush())
	assert.True(t, inner.Flushed)
}
