package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/options"
)

func newTestSharedEngine(t *testing.T, dir string, opts ...options.OptionFunc) *engine.SharedEngine {
	t.Helper()

	engineOpts := options.NewDefaultOptions()
	options.WithDataDir(dir)(&engineOpts)
	for _, opt := range opts {
		opt(&engineOpts)
	}

	eng, err := engine.OpenShared(context.Background(), &engine.Config{
		Options: &engineOpts,
		Logger:  zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	return eng
}

func TestSharedSetGetRemove(t *testing.T) {
	eng := newTestSharedEngine(t, t.TempDir())
	defer eng.Close()

	require.NoError(t, eng.Set("k", "v"))

	value, found, err := eng.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", value)

	require.NoError(t, eng.Remove("k"))
	_, found, err = eng.Get("k")
	require.NoError(t, err)
	require.False(t, found)

	err = eng.Remove("k")
	require.True(t, errors.IsKeyNotFound(err))
}

func TestSharedRestartReproducesState(t *testing.T) {
	dir := t.TempDir()

	eng := newTestSharedEngine(t, dir)
	for i := 0; i < 100; i++ {
		require.NoError(t, eng.Set(fmt.Sprintf("foo%d", i), fmt.Sprintf("bar%d", i)))
	}
	require.NoError(t, eng.Close())

	eng = newTestSharedEngine(t, dir)
	defer eng.Close()

	for i := 0; i < 100; i++ {
		value, found, err := eng.Get(fmt.Sprintf("foo%d", i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, fmt.Sprintf("bar%d", i), value)
	}
}

// Readers running against clones must only ever observe values that were
// previously written for the key, while a single writer keeps updating it.
func TestSharedConcurrentReadersNeverSeeUnwrittenValues(t *testing.T) {
	eng := newTestSharedEngine(t, t.TempDir())
	defer eng.Close()

	const writes = 500
	const readers = 4

	var written sync.Map
	written.Store("v-0", true)
	require.NoError(t, eng.Set("k", "v-0"))

	done := make(chan struct{})
	errCh := make(chan error, readers)
	var wg sync.WaitGroup

	for r := 0; r < readers; r++ {
		wg.Add(1)
		clone := eng.Clone()
		go func() {
			defer wg.Done()
			defer clone.Release()
			for {
				select {
				case <-done:
					return
				default:
				}

				value, found, err := clone.Get("k")
				if err != nil {
					errCh <- err
					return
				}
				if !found {
					errCh <- fmt.Errorf("key vanished")
					return
				}
				if _, ok := written.Load(value); !ok {
					errCh <- fmt.Errorf("observed value %q was never written", value)
					return
				}
			}
		}()
	}

	for i := 1; i <= writes; i++ {
		value := fmt.Sprintf("v-%d", i)
		written.Store(value, true)
		require.NoError(t, eng.Set("k", value))
	}

	close(done)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	value, found, err := eng.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, fmt.Sprintf("v-%d", writes), value)
}

// A tiny threshold forces many compactions while readers keep hitting keys
// whose entries get redirected and whose old segments get unlinked.
func TestSharedReadsSurviveConcurrentCompaction(t *testing.T) {
	eng := newTestSharedEngine(t, t.TempDir(), options.WithSharedCompactionThreshold(512))
	defer eng.Close()

	const keys = 10
	const readers = 4

	for i := 0; i < keys; i++ {
		require.NoError(t, eng.Set(fmt.Sprintf("key-%d", i), "initial"))
	}

	done := make(chan struct{})
	errCh := make(chan error, readers)
	var wg sync.WaitGroup

	for r := 0; r < readers; r++ {
		wg.Add(1)
		clone := eng.Clone()
		go func(seed int) {
			defer wg.Done()
			defer clone.Release()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}

				key := fmt.Sprintf("key-%d", (seed+i)%keys)
				_, found, err := clone.Get(key)
				if err != nil {
					errCh <- err
					return
				}
				if !found {
					errCh <- fmt.Errorf("key %s vanished", key)
					return
				}
			}
		}(r)
	}

	for round := 0; round < 200; round++ {
		for i := 0; i < keys; i++ {
			require.NoError(t, eng.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("round-%d", round)))
		}
	}

	close(done)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	for i := 0; i < keys; i++ {
		value, found, err := eng.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "round-199", value)
	}
}

func TestSharedCompactionPreservesState(t *testing.T) {
	eng := newTestSharedEngine(t, t.TempDir())
	defer eng.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, eng.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i)))
	}
	require.NoError(t, eng.Remove("key-0"))

	require.NoError(t, eng.Compact())

	_, found, err := eng.Get("key-0")
	require.NoError(t, err)
	require.False(t, found)

	for i := 1; i < 50; i++ {
		value, found, err := eng.Get(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, fmt.Sprintf("value-%d", i), value)
	}
}
