package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrencyBound(t *testing.T) {
	s := New(2)
	s.Start()
	defer s.Stop()

	var running int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		s.Enqueue(UserBlocked, Image, func(ctx context.Context) (interface{}, error) {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		})
	}

	wg.Wait()
	if atomic.LoadInt32(&maxSeen) > 2 {
		t.Fatalf("observed %d concurrent tasks, want <= 2", maxSeen)
	}
}

func TestLIFOWithinBucket(t *testing.T) {
	s := New(1)
	s.Start()
	defer s.Stop()

	// Block the single slot so all three enqueues land in the bucket
	// before dispatch starts picking them off.
	block := make(chan struct{})
	s.Enqueue(UserBlocked, Image, func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	})
	time.Sleep(20 * time.Millisecond)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		s.Enqueue(UserBlocked, Image, func(ctx context.Context) (interface{}, error) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		})
	}

	close(block)
	wg.Wait()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestPauseBlocksBackgroundOnly(t *testing.T) {
	s := New(2)
	s.Start()
	defer s.Stop()

	s.Pause(200 * time.Millisecond)

	var bgRan, fgRan int32
	fut := s.Enqueue(Background, Image, func(ctx context.Context) (interface{}, error) {
		atomic.StoreInt32(&bgRan, 1)
		return nil, nil
	})
	s.Enqueue(UserBlocked, Image, func(ctx context.Context) (interface{}, error) {
		atomic.StoreInt32(&fgRan, 1)
		return nil, nil
	})

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fgRan) != 1 {
		t.Fatalf("user-blocked task did not run while paused")
	}
	if atomic.LoadInt32(&bgRan) != 0 {
		t.Fatalf("background task ran while paused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := fut.Get(ctx); err != nil {
		t.Fatalf("future.Get: %v", err)
	}
	if atomic.LoadInt32(&bgRan) != 1 {
		t.Fatalf("background task did not run after pause expired")
	}
}
