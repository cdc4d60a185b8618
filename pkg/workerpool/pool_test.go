package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_ClampsSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		size          uint
		providerCount uint
		wantSize      int
	}{
		{name: "configured size below cap", size: 8, providerCount: 2, wantSize: 8},
		{name: "configured size above cap", size: 100, providerCount: 2, wantSize: 20},
		{name: "zero size defaults to cap", size: 0, providerCount: 2, wantSize: 20},
		{name: "zero providers treated as one", size: 0, providerCount: 0, wantSize: 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := New(tc.size, tc.providerCount)
			defer p.Shutdown(context.Background())

			require.Equal(t, tc.wantSize, p.Size())
		})
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(2, 1)
	defer p.Shutdown(context.Background())

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()

			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
		require.NoError(t, err)
	}

	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestShutdown_WaitsForInFlightTasks(t *testing.T) {
	t.Parallel()

	p := New(2, 1)

	var completed atomic.Int32

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(func() {
			time.Sleep(30 * time.Millisecond)
			completed.Add(1)
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	require.Equal(t, int32(4), completed.Load())
}

func TestSubmit_AfterShutdown(t *testing.T) {
	t.Parallel()

	p := New(1, 1)
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(func() {})
	require.ErrorIs(t, err, ErrPoolStopped)

	// Shutting down twice is a no-op.
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdown_DeadlineElapses(t *testing.T) {
	t.Parallel()

	p := New(1, 1)

	release := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
