package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRing_FIFO(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 3; i++ {
		require.False(t, r.Push(i))
	}
	require.Equal(t, 3, r.Len())
	require.Equal(t, []int{1, 2, 3}, r.Drain())
	require.Equal(t, 0, r.Len())
}

func TestRing_DropsOldestWhenFull(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}
	require.True(t, r.Push(4))
	require.True(t, r.Push(5))

	require.Equal(t, uint64(2), r.Dropped())
	require.Equal(t, []int{3, 4, 5}, r.Drain())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	require.Equal(t, 1, r.Cap())

	r.Push("a")
	r.Push("b")
	item, ok := r.TryPop()
	require.True(t, ok)
	require.Equal(t, "b", item)
}

func TestRing_PopBlocksUntilPush(t *testing.T) {
	r := NewRing[int](2)
	got := make(chan int, 1)

	go func() {
		v, err := r.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	r.Push(7)

	select {
	case v := <-got:
		require.Equal(t, 7, v)
	case <-time.After(time.Second):
		require.Fail(t, "Pop did not wake up after Push")
	}
}

func TestRing_PopHonoursContext(t *testing.T) {
	r := NewRing[int](2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRing_CloseDrainsThenErrors(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Close()
	r.Close()

	require.False(t, r.Push(2), "push after close is ignored")

	v, err := r.Pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = r.Pop(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	select {
	case <-r.Done():
	default:
		require.Fail(t, "Done should be closed")
	}
}

func TestRing_ConcurrentProducers(t *testing.T) {
	r := NewRing[int](8)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Push(i)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8, r.Len())
	require.Equal(t, uint64(400-8), r.Dropped())
}
