package mainloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_RunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := range 20 {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(func() {}))

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, got)
}

func TestLoop_DoWaitsForResult(t *testing.T) {
	l, _ := startLoop(t)

	value := 0
	require.NoError(t, l.Do(func() { value = 42 }))
	require.Equal(t, 42, value)
}

func TestLoop_PostFromManyGoroutines(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			l.Post(func() { counter++ })
		})
	}
	wg.Wait()

	var got int
	require.NoError(t, l.Do(func() { got = counter }))
	require.Equal(t, 50, got)
}

func TestLoop_StoppedLoopRejectsWork(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	require.False(t, l.Post(func() {}))
	require.ErrorIs(t, l.Do(func() {}), ErrStopped)
}

func TestLoop_RunReturnsContextError(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Run(ctx), context.Canceled)
}
