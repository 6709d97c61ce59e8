package server_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/client"
	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/internal/server"
	"github.com/iamNilotpal/ember/pkg/options"
)

func startTestServer(t *testing.T, poolSize int) (string, func()) {
	t.Helper()

	engineOpts := options.NewDefaultOptions()
	options.WithDataDir(t.TempDir())(&engineOpts)

	eng, err := engine.OpenShared(context.Background(), &engine.Config{
		Options: &engineOpts,
		Logger:  zap.NewNop().Sugar(),
	})
	require.NoError(t, err)

	srv := server.New(&server.Config{
		Store:    eng,
		Logger:   zap.NewNop().Sugar(),
		PoolSize: poolSize,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		serveErr := srv.Serve(ln)
		_ = serveErr
	}()

	return ln.Addr().String(), func() {
		srv.Stop()
		require.NoError(t, eng.Close())
	}
}

func TestRoundTrip(t *testing.T) {
	addr, stop := startTestServer(t, options.DefaultPoolSize)
	defer stop()

	conn, err := client.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	result, err := conn.Set("key", "value")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.NotNil(t, result.Value)
	require.Equal(t, "ok", *result.Value)

	result, err = conn.Get("key")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.NotNil(t, result.Value)
	require.Equal(t, "value", *result.Value)

	result, err = conn.Get("missing")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.Nil(t, result.Value)

	result, err = conn.Remove("key")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.Equal(t, "ok", *result.Value)

	result, err = conn.Remove("key")
	require.NoError(t, err)
	require.False(t, result.Ok())
	require.Contains(t, result.Error, "not found")

	// The connection keeps serving after an error response.
	result, err = conn.Set("key", "again")
	require.NoError(t, err)
	require.True(t, result.Ok())
}

func TestManyCommandsOnOneConnection(t *testing.T) {
	addr, stop := startTestServer(t, options.DefaultPoolSize)
	defer stop()

	conn, err := client.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 100; i++ {
		result, err := conn.Set(fmt.Sprintf("foo%d", i), fmt.Sprintf("bar%d", i))
		require.NoError(t, err)
		require.True(t, result.Ok())
	}

	for i := 0; i < 100; i++ {
		result, err := conn.Get(fmt.Sprintf("foo%d", i))
		require.NoError(t, err)
		require.True(t, result.Ok())
		require.NotNil(t, result.Value)
		require.Equal(t, fmt.Sprintf("bar%d", i), *result.Value)
	}
}

func TestParallelConnections(t *testing.T) {
	addr, stop := startTestServer(t, options.DefaultPoolSize)
	defer stop()

	const conns = 4
	errCh := make(chan error, conns)

	for c := 0; c < conns; c++ {
		go func(c int) {
			conn, err := client.Dial(addr)
			if err != nil {
				errCh <- err
				return
			}
			defer conn.Close()

			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("conn%d-key%d", c, i)
				if _, err := conn.Set(key, "v"); err != nil {
					errCh <- err
					return
				}
				result, err := conn.Get(key)
				if err != nil {
					errCh <- err
					return
				}
				if !result.Ok() || result.Value == nil || *result.Value != "v" {
					errCh <- fmt.Errorf("unexpected result for %s: %+v", key, result)
					return
				}
			}
			errCh <- nil
		}(c)
	}

	for c := 0; c < conns; c++ {
		require.NoError(t, <-errCh)
	}
}

func TestSequentialServing(t *testing.T) {
	addr, stop := startTestServer(t, 0)
	defer stop()

	conn, err := client.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	result, err := conn.Set("key", "value")
	require.NoError(t, err)
	require.True(t, result.Ok())

	result, err = conn.Get("key")
	require.NoError(t, err)
	require.NotNil(t, result.Value)
	require.Equal(t, "value", *result.Value)
}
