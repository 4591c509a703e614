package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleetdash/logging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	middleware := SecurityHeadersMiddleware(dummyHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for key, expectedValue := range expectedHeaders {
		assert.Equal(t, expectedValue, rr.Header().Get(key), key)
	}

	csp := rr.Header().Get("Content-Security-Policy")
	for _, directive := range []string{"default-src 'self'", "script-src 'self'", "img-src 'self' data:"} {
		assert.Contains(t, csp, directive)
	}
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCacheControlHeaders(t *testing.T) {
	handler := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	for path, wantNoStore := range map[string]bool{
		"/":               true,
		"/vehicles":       true,
		"/api/user":       true,
		"/static/app.css": false,
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, wantNoStore, strings.Contains(w.Header().Get("Cache-Control"), "no-store"), path)
	}
}

func TestCORSMiddleware(t *testing.T) {
	reached := false
	middleware := CORSMiddleware([]string{"https://fleet.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest("OPTIONS", "/api/vehicles", nil)
	req.Header.Set("Origin", "https://fleet.example.com")
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, reached)
	assert.Equal(t, "https://fleet.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "POST, GET, OPTIONS, PUT, DELETE", rr.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest("GET", "/api/vehicles", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	assert.True(t, reached)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var inner *slog.Logger
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = logging.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	id := rr.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.NotNil(t, inner)
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
	assert.Contains(t, buf.String(), `"status":418`)

	// a valid incoming id is kept, garbage is replaced
	given := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", given)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, given, rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get("X-Request-ID"))
}
