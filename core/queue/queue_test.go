package queue

import (
	"runtime"
	"sort"
	"sync"
	"testing"
)

// TestQueueSingleProducerOrder verifies FIFO order is preserved for a
// single producer's own pushes.
func TestQueueSingleProducerOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5000; i++ {
		q.Push(i)
	}

	it := q.Iterator()
	for i := 0; i < 5000; i++ {
		v, ok := it.Pop()
		if !ok {
			t.Fatalf("expected value at index %d, got none", i)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
	if _, ok := it.Pop(); ok {
		t.Fatal("expected queue to be drained")
	}
}

// TestQueueMPMC verifies that for N producers pushing M values each and K
// consumers popping concurrently, every pushed value is popped exactly once.
func TestQueueMPMC(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	const consumers = 4

	q := New[int]()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			base := p * perProducer
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}()
	}
	wg.Wait()

	results := make(chan int, producers*perProducer)
	var cwg sync.WaitGroup
	cwg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			it := q.Iterator()
			empty := 0
			for empty < 3 {
				v, ok := it.Pop()
				if !ok {
					empty++
					continue
				}
				empty = 0
				results <- v
			}
		}()
	}
	cwg.Wait()
	close(results)

	seen := make([]int, 0, producers*perProducer)
	for v := range results {
		seen = append(seen, v)
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d values, got %d", producers*perProducer, len(seen))
	}

	sort.Ints(seen)
	for i, v := range seen {
		if v != i {
			t.Fatalf("multiset mismatch at position %d: got %d", i, v)
		}
	}
}

// TestQueueExtendsChain verifies pushing past a single node's capacity
// still preserves order.
func TestQueueExtendsChain(t *testing.T) {
	q := New[int]()
	const total = nodeSize*3 + 17
	for i := 0; i < total; i++ {
		q.Push(i)
	}
	it := q.Iterator()
	count := 0
	for {
		v, ok := it.Pop()
		if !ok {
			break
		}
		if v != count {
			t.Fatalf("expected %d, got %d", count, v)
		}
		count++
	}
	if count != total {
		t.Fatalf("expected %d entries, popped %d", total, count)
	}
}

// TestQueueNoNodeLeak verifies that once a queue, its producers, and its
// consumers all go out of scope, every chain node is eventually reclaimed.
func TestQueueNoNodeLeak(t *testing.T) {
	func() {
		q := New[int]()
		for i := 0; i < nodeSize*4; i++ {
			q.Push(i)
		}
		it := q.Iterator()
		for {
			if _, ok := it.Pop(); !ok {
				break
			}
		}
		_ = it
	}()

	deadline := 0
	for DebugLiveNodes() != 0 && deadline < 20 {
		runtime.GC()
		deadline++
	}
	if n := DebugLiveNodes(); n != 0 {
		t.Fatalf("expected 0 live nodes after GC, got %d", n)
	}
}
