package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/outreach/internal/client/remote"
	"github.com/iudanet/outreach/internal/server/jwt"
	"github.com/iudanet/outreach/internal/server/storage/sqlite"
	"github.com/iudanet/outreach/pkg/api"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwt.NewService("0123456789abcdef", time.Hour)

	ts := httptest.NewServer(NewRouter(store, tokens, nil, "test", logger))
	t.Cleanup(ts.Close)
	return ts
}

// Клиент движка синхронизации против настоящего сервера
func TestServer_RemoteClientRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	var token string
	client := remote.NewClient(ts.URL, remote.WithTokenSource(func(context.Context) (string, error) {
		return token, nil
	}))

	require.NoError(t, client.Health(ctx))

	_, err := client.Register(ctx, api.RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)

	resp, err := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	token = resp.AccessToken

	require.NoError(t, client.Put(ctx, "homeless", "h1", json.RawMessage(`{"id":"h1","name":"Ann"}`)))
	require.NoError(t, client.Put(ctx, "homeless", "h1", json.RawMessage(`{"id":"h1","name":"Anna"}`)))

	doc, err := client.Get(ctx, "homeless", "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"h1","name":"Anna"}`, string(doc))

	docs, err := client.List(ctx, "homeless")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, client.Delete(ctx, "homeless", "h1"))

	err = client.Delete(ctx, "homeless", "h1")
	assert.ErrorIs(t, err, remote.ErrRejected, "deleting a missing document is not retried")

	err = client.Put(ctx, "homeless", "h2", json.RawMessage(`{"id":"h2"}`))
	assert.ErrorIs(t, err, remote.ErrRejected, "invalid document")
}

func TestServer_CollectionsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + api.PathCollections + "/homeless")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_LoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)

	body, err := json.Marshal(api.RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+api.PathRegister, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err = json.Marshal(api.LoginRequest{Username: "alice", Password: "wrong-password"})
	require.NoError(t, err)
	resp, err = http.Post(ts.URL+api.PathLogin, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_RunShutsDown(t *testing.T) {
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(store, jwt.NewService("0123456789abcdef", time.Hour), Options{
		Addr:            "127.0.0.1:0",
		AuthRateLimit:   5,
		AuthRateWindow:  time.Minute,
		ShutdownTimeout: time.Second,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
