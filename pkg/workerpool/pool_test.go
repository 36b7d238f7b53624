package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := New(context.Background(), 4)
	var count int64
	for i := 0; i < 50; i++ {
		pool.Go(func() error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 tasks to run, got %d", count)
	}
}

func TestPoolPropagatesFirstError(t *testing.T) {
	pool := New(context.Background(), 2)
	sentinel := errors.New("task failed")
	pool.Go(func() error { return sentinel })
	pool.Go(func() error { return nil })

	err := pool.Wait()
	if err == nil {
		t.Fatal("expected an error from Wait")
	}
}

func TestPoolDefaultsSizeToCPUCount(t *testing.T) {
	pool := New(context.Background(), 0)
	if pool == nil {
		t.Fatal("expected a non-nil pool")
	}
}
