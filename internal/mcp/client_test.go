package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Config{BaseURL: srv.URL, APIKey: "test-key", Retries: 1}, testLogger(), nil, nil)
	return client, srv
}

func TestCallSendsEnvelope(t *testing.T) {
	var got envelope
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MCP-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok","data":{"items":[]}}`))
	})

	res := client.Call(context.Background(), ToolProductsSearch, map[string]any{"q": "cozze"}, "user-42")
	require.False(t, res.IsError())
	assert.Equal(t, ToolProductsSearch, got.Tool)
	assert.Equal(t, "user-42", got.Meta["telegramUserId"])
}

func TestCallRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","data":{"items":[{"id":1,"name":"Orata"}]}}`))
	})

	res := client.Call(context.Background(), ToolProductsSearch, nil, "")
	require.False(t, res.IsError())
	assert.Equal(t, int64(2), calls.Load())
	assert.Len(t, res.Items(), 1)
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"chiave non valida"}`))
	})

	res := client.Call(context.Background(), ToolProductsByID, map[string]any{"productId": 1}, "")
	assert.True(t, res.IsError())
	assert.Equal(t, int64(1), calls.Load())
}

func TestCallNeverReturnsNil(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0", Retries: 0}, testLogger(), nil, nil)
	res := client.Call(context.Background(), ToolCustomersMe, nil, "")
	require.NotNil(t, res)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message, "client_error")
}

func TestFullCatalog(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, ToolProductsSearch, got.Tool)
		_, _ = w.Write([]byte(`{"status":"ok","data":{"items":[{"id":1,"name":"Orata"},{"id":2,"name":"Cozze"}]}}`))
	})

	items, err := client.FullCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
