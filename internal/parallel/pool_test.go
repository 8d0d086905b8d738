package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if want := runtime.GOMAXPROCS(0); pool.Workers() != want {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), want)
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
	ran := 0
	pool.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran %d items on a closed pool, want 2", ran)
	}
}

func TestWorkerPool_ForRange(t *testing.T) {
	tests := []struct {
		n, chunk uint64
		calls    int
	}{
		{0, 4, 0},
		{3, 0, 1},
		{3, 8, 1},
		{10, 4, 3},
		{1000, 256, 4},
	}
	pool := NewWorkerPool(3)
	defer pool.Close()

	for _, tt := range tests {
		var (
			mu    sync.Mutex
			calls int
			seen  = make([]int, tt.n)
		)
		pool.ForRange(tt.n, tt.chunk, func(lo, hi uint64) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			for i := lo; i < hi; i++ {
				seen[i]++
			}
		})
		if calls != tt.calls {
			t.Errorf("ForRange(%d, %d) made %d calls, want %d", tt.n, tt.chunk, calls, tt.calls)
		}
		for i, c := range seen {
			if c != 1 {
				t.Errorf("ForRange(%d, %d) visited %d %d times", tt.n, tt.chunk, i, c)
				break
			}
		}
	}
}
