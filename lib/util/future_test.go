package util

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFutureCompleteOnce verifies that only the first Complete call resolves the future
func TestFutureCompleteOnce(t *testing.T) {
	f := NewFuture[int]()
	require.False(t, f.IsDone())

	_, ok := f.Value()
	require.False(t, ok)

	require.True(t, f.Complete(1))
	require.False(t, f.Complete(2))

	v, ok := f.Value()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, f.IsDone())
}

// TestFutureCallbacks verifies callbacks registered before and after completion
func TestFutureCallbacks(t *testing.T) {
	f := NewFuture[string]()

	var before, after atomic.Int32
	var seen string
	f.OnComplete(func(v string) {
		seen = v
		before.Add(1)
	})

	f.Complete("ok")
	f.Complete("ignored")

	f.OnComplete(func(v string) {
		require.Equal(t, "ok", v)
		after.Add(1)
	})

	require.Equal(t, "ok", seen)
	require.Equal(t, int32(1), before.Load())
	require.Equal(t, int32(1), after.Load())
}

// TestFutureConcurrentComplete races many goroutines on Complete and checks a single winner
func TestFutureConcurrentComplete(t *testing.T) {
	const goroutines = 64
	f := NewFuture[int]()

	var fired atomic.Int32
	f.OnComplete(func(int) { fired.Add(1) })

	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			if f.Complete(i) {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
	require.Equal(t, int32(1), fired.Load())
}

// TestCompletedFuture checks the pre-resolved constructor
func TestCompletedFuture(t *testing.T) {
	f := CompletedFuture(42)
	require.True(t, f.IsDone())
	v, ok := f.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)
}
