package performance

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			counter.Add(1)
		}
		if !pool.Submit(task) {
			task()
		}
	}
	wg.Wait()

	if got := counter.Load(); got != 100 {
		t.Fatalf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Stop()

	if pool.Submit(func() {}) {
		t.Fatal("Submit succeeded on a stopped pool")
	}
}

func TestWorkerPool_SubmitWait(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Stop()

	ran := false
	if !pool.SubmitWait(func() { ran = true }) {
		t.Fatal("SubmitWait returned false")
	}
	if !ran {
		t.Fatal("task did not run before SubmitWait returned")
	}
}

func TestWorkerPool_StartIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Stop()

	stats := pool.Stats()
	if stats.Workers != 2 || !stats.Running {
		t.Fatalf("stats = %+v, want 2 running workers", stats)
	}
}

func TestWorkerPool_DefaultWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.workers <= 0 {
		t.Fatalf("workers = %d, want positive default", pool.workers)
	}
}

func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.SubmitWait(func() {})
	}
}
