package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-dashboard/internal/config"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func TestGracefulServer_ShutdownRunsHooksInReverse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	gs := NewGracefulServer(httpServer, slog.New(slog.NewTextHandler(io.Discard, nil)), testServerConfig())

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"store", "cache"} {
		gs.RegisterShutdownHook(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.Equal(t, []string{"cache", "store"}, order)

	_, err = http.Get("http://" + ln.Addr().String())
	assert.Error(t, err, "listener should be closed after shutdown")
}

func TestGracefulServer_HookErrorsAreJoined(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()},
		slog.New(slog.NewTextHandler(io.Discard, nil)), testServerConfig())

	errStore := errors.New("store close failed")
	ran := false
	gs.RegisterShutdownHook("last", func(ctx context.Context) error {
		ran = true
		return nil
	})
	gs.RegisterShutdownHook("store", func(ctx context.Context) error { return errStore })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = gs.Serve(ctx, ln)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
	assert.Contains(t, err.Error(), "shutdown hook store failed")
	assert.True(t, ran, "a failing hook must not stop later hooks")
}

func TestGracefulServer_RunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	gs := NewGracefulServer(&http.Server{Addr: ln.Addr().String()},
		slog.New(slog.NewTextHandler(io.Discard, nil)), testServerConfig())

	err = gs.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
