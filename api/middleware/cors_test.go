package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSOptions(t *testing.T) {
	opts := corsOptions(nil)
	assert.Equal(t, []string{devOrigin}, opts.AllowedOrigins)
	assert.True(t, opts.AllowCredentials)

	opts = corsOptions([]string{" https://shop.example.com/ ", ""})
	assert.Equal(t, []string{"https://shop.example.com"}, opts.AllowedOrigins)

	opts = corsOptions([]string{"https://shop.example.com", "*"})
	assert.Equal(t, []string{"*"}, opts.AllowedOrigins)
	assert.False(t, opts.AllowCredentials)
	assert.Contains(t, opts.AllowedHeaders, idempotencyHeader)
	assert.Contains(t, opts.ExposedHeaders, replayedHeader)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"https://shop.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "https://shop.example.com", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}
