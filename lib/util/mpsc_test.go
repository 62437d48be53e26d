package util

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMPSCBasic tests push and receive in order for a single producer
func TestMPSCBasic(t *testing.T) {
	q := NewMPSCQueue[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		require.True(t, q.Push(&v))
	}

	for i := 0; i < 10; i++ {
		select {
		case v := <-q.Recv():
			require.Equal(t, i, *v)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}
}

// TestMPSCRejectsNil verifies that nil values are not queued
func TestMPSCRejectsNil(t *testing.T) {
	q := NewMPSCQueue[int]()
	defer q.Close()
	require.False(t, q.Push(nil))
}

// TestMPSCConcurrentProducers pushes from many goroutines and checks every item arrives once
func TestMPSCConcurrentProducers(t *testing.T) {
	q := NewMPSCQueue[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 500
	total := producers * perProducer

	received := make(map[int]bool, total)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(received) < total {
			select {
			case v := <-q.Recv():
				if received[*v] {
					t.Errorf("duplicate item %d", *v)
				}
				received[*v] = true
			case <-time.After(5 * time.Second):
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				q.Push(&v)
				if i%50 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()
	<-done

	require.Len(t, received, total)
}

// TestMPSCClose verifies that queued items survive Close and pushes fail afterwards
func TestMPSCClose(t *testing.T) {
	q := NewMPSCQueue[int]()
	for i := 0; i < 3; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()
	require.True(t, q.IsClosed())

	v := 100
	require.False(t, q.Push(&v))

	var got []int
	for item := range q.Recv() {
		got = append(got, *item)
	}
	require.Equal(t, []int{0, 1, 2}, got)
}

// TestMPSCPushRacingClose checks that every push that reports success is
// delivered even when Close runs concurrently
func TestMPSCPushRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewMPSCQueue[int]()

		const producers = 4
		var accepted sync.Map
		var wg sync.WaitGroup
		wg.Add(producers)
		for p := 0; p < producers; p++ {
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					v := p*100 + i
					if !q.Push(&v) {
						return
					}
					accepted.Store(v, true)
				}
			}(p)
		}

		received := make(map[int]bool)
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for item := range q.Recv() {
				received[*item] = true
			}
		}()

		runtime.Gosched()
		q.Close()
		wg.Wait()

		select {
		case <-drained:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: receive channel was not closed", round)
		}
		accepted.Range(func(k, _ any) bool {
			require.True(t, received[k.(int)], "round %d: accepted item %d was dropped", round, k)
			return true
		})
	}
}
