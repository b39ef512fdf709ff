package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_CORS(t *testing.T) {
	h := newTestHandler(t, staticRuntime(helloRuntime()))
	r := NewRouter(h, RouterConfig{AllowedOrigins: []string{"https://app.example"}})

	pre := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	pre.Header.Set("Origin", "https://app.example")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, pre)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	w = post(t, r, `{"query":"{ hello }"}`)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Health(t *testing.T) {
	h := newTestHandler(t, staticRuntime(helloRuntime()))

	tests := []struct {
		name   string
		check  func(context.Context) error
		status int
		body   map[string]any
	}{
		{"no check", nil, http.StatusOK, map[string]any{"status": "ok"}},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, map[string]any{"status": "ok"}},
		{"down", func(context.Context) error { return errors.New("db down") }, http.StatusServiceUnavailable,
			map[string]any{"status": "unavailable", "error": "db down"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(h, RouterConfig{Health: tc.check})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.body, decode(t, w))
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestHandler(t, staticRuntime(helloRuntime()))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	w := httptest.NewRecorder()
	NewRouter(h, RouterConfig{Metrics: metrics}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	NewRouter(h, RouterConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_GraphQL(t *testing.T) {
	h := newTestHandler(t, staticRuntime(helloRuntime()))
	w := post(t, NewRouter(h, RouterConfig{}), `{"query":"{ hello }"}`)
	assert.Equal(t, map[string]any{"data": map[string]any{"hello": "world"}}, decode(t, w))
}
