package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openmined/syftfiles/internal/store/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerLifecycle(t *testing.T) {
	srv, err := New(context.Background(), &Config{
		Http:  &HttpServerConfig{Addr: "127.0.0.1:0"},
		Store: &backend.Config{Kind: backend.KindLocal, Dir: t.TempDir()},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerListenError(t *testing.T) {
	srv, err := New(context.Background(), &Config{
		Http:  &HttpServerConfig{Addr: "256.0.0.1:80"},
		Store: &backend.Config{Kind: backend.KindMemory},
	})
	require.NoError(t, err)

	err = srv.Start(context.Background())
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &Config{
		Http:  &HttpServerConfig{Addr: DefaultAddr},
		Store: &backend.Config{Kind: "ftp"},
	})
	assert.ErrorIs(t, err, backend.ErrUnknownKind)
}
