package syncengine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPathLocker_SamePathExcludes(t *testing.T) {
	pl := newPathLocker()

	var active atomic.Int32
	var maxActive atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock := pl.lock("a.txt")
			defer unlock()

			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}

			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}

	wg.Wait()

	if maxActive.Load() != 1 {
		t.Errorf("expected at most 1 concurrent holder of the same path, got %d", maxActive.Load())
	}
}

func TestPathLocker_DifferentPathsConcurrent(t *testing.T) {
	pl := newPathLocker()

	var wg sync.WaitGroup
	start := make(chan struct{})

	for _, p := range []string{"a.txt", "b.txt", "c.txt"} {
		p := p

		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			unlock := pl.lock(p)
			defer unlock()

			time.Sleep(5 * time.Millisecond)
		}()
	}

	close(start)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent paths appear to be serialized")
	}
}

func TestPathLocker_CleansUpMapEntries(t *testing.T) {
	pl := newPathLocker()

	unlock := pl.lock("x.txt")
	unlock()

	pl.mu.Lock()
	_, exists := pl.locks["x.txt"]
	pl.mu.Unlock()

	if exists {
		t.Error("expected lock entry to be removed after refcount drops to zero")
	}
}
