package workerpool_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/pkg/workerpool"
)

func TestJobsRunInSubmissionOrderOnSingleWorker(t *testing.T) {
	pool := workerpool.New(1, zap.NewNop().Sugar())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		ok := pool.Execute(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
		require.True(t, ok)
	}

	pool.Shutdown()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestAllJobsCompleteAcrossWorkers(t *testing.T) {
	pool := workerpool.New(5, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		require.True(t, pool.Execute(func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	wg.Wait()
	pool.Shutdown()
	require.Equal(t, 200, count)
}

func TestPanicDoesNotKillSiblingWorkers(t *testing.T) {
	pool := workerpool.New(2, zap.NewNop().Sugar())

	require.True(t, pool.Execute(func() { panic("boom") }))

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.True(t, pool.Execute(func() {
			defer wg.Done()
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	wg.Wait()
	pool.Shutdown()
	require.Equal(t, 20, count)
}

func TestShutdownDrainsQueueAndRejectsNewJobs(t *testing.T) {
	pool := workerpool.New(1, zap.NewNop().Sugar())

	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		require.True(t, pool.Execute(func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	pool.Shutdown()
	require.Equal(t, 50, count)

	require.False(t, pool.Execute(func() {}))
}
