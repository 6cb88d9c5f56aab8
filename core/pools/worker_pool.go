package pools

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/iris-restful/core/queue"
)

// Task represents a unit of work submitted to the pool.
type Task func()

// PoolState mirrors the reference worker pool's lifecycle: Active accepts
// and runs work, Draining finishes what's queued but refuses new
// submissions, Terminating stops each worker's pop loop at its next
// boundary and discards whatever is still queued, Inactive means every
// worker has exited.
type PoolState int32

const (
	StateActive PoolState = iota
	StateDraining
	StateTerminating
	StateInactive
)

// MetricsSink receives queue depth and task duration samples (§6.3's
// observability surface). internal/telemetry.Metrics implements this; it
// is optional.
type MetricsSink interface {
	SetQueueDepth(n float64)
	ObserveTaskDuration(seconds float64)
}

// Fence is a one-shot completion token returned by IssueWithFence; Wait
// blocks until the submitted task has returned.
type Fence struct {
	done chan struct{}
}

// Wait blocks until the associated task has completed.
func (f Fence) Wait() {
	<-f.done
}

// WorkerPool is a fixed pool of goroutines draining a shared lock-free
// FIFO (core/queue), matching §4.2: a task queue that many producers push
// into and a fixed worker count drains, each worker holding its own
// iterator into the shared queue.
type WorkerPool struct {
	numWorkers int
	tasks      *queue.Queue[Task]
	state      atomic.Int32
	sink       MetricsSink
	inFlight   atomic.Int64

	wakeMu sync.Mutex
	wake   *sync.Cond
	wg     sync.WaitGroup

	stopTicker chan struct{}

	stats struct {
		submitted atomic.Uint64
		completed atomic.Uint64
		rejected  atomic.Uint64
		panics    atomic.Uint64
	}
}

// NewWorkerPool creates and starts a fixed-size worker pool. A
// non-positive count defaults to runtime.NumCPU(), matching the reference
// pool's "hardware concurrency" default.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	p := &WorkerPool{
		numWorkers: numWorkers,
		tasks:      queue.New[Task](),
		stopTicker: make(chan struct{}),
	}
	p.wake = sync.NewCond(&p.wakeMu)

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(i)
	}

	// Periodic broadcast guards against a lost wakeup: a worker that
	// checked the queue, found nothing, and is about to wait can race a
	// push's notification. A 1-second nudge bounds how long that race can
	// stall a worker, exactly as the reference implementation's condition
	// variable wait timeout does.
	go p.periodicWake()

	return p
}

func (p *WorkerPool) periodicWake() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.wake.Broadcast()
		case <-p.stopTicker:
			return
		}
	}
}

// Issue enqueues a 0-arg task and returns immediately. It returns false,
// logging a line, if the pool is draining, terminating, or inactive.
func (p *WorkerPool) Issue(task Task) bool {
	return p.issue(task, nil)
}

// IssueWithFence enqueues a task and returns a Fence whose Wait blocks
// until the task has run to completion. A rejected submission returns an
// already-closed Fence; a task that Terminate discards never runs, so its
// Fence never fires.
func (p *WorkerPool) IssueWithFence(task Task) (Fence, bool) {
	fence := Fence{done: make(chan struct{})}
	ok := p.issue(task, fence.done)
	if !ok {
		close(fence.done)
	}
	return fence, ok
}

func (p *WorkerPool) issue(task Task, done chan struct{}) bool {
	switch PoolState(p.state.Load()) {
	case StateDraining, StateTerminating, StateInactive:
		p.stats.rejected.Add(1)
		log.Printf("[worker-pool] rejected submission: pool is %v", PoolState(p.state.Load()))
		return false
	}

	p.stats.submitted.Add(1)
	depth := p.inFlight.Add(1)
	if p.sink != nil {
		p.sink.SetQueueDepth(float64(depth))
	}
	p.tasks.Push(func() {
		defer func() {
			if done != nil {
				close(done)
			}
		}()
		task()
	})
	p.wake.Broadcast()
	return true
}

// SetMetrics attaches a MetricsSink. Call once, before the pool is put to
// use concurrently.
func (p *WorkerPool) SetMetrics(sink MetricsSink) {
	p.sink = sink
}

func (p *WorkerPool) runWorker(id int) {
	defer p.wg.Done()
	it := p.tasks.Iterator()

	for {
		state := PoolState(p.state.Load())
		if state == StateTerminating {
			return
		}

		task, ok := it.Pop()
		if !ok {
			if state == StateDraining {
				// Nothing left to drain.
				return
			}
			p.wakeMu.Lock()
			p.wake.Wait()
			p.wakeMu.Unlock()
			continue
		}

		p.runTask(task)
	}
}

func (p *WorkerPool) runTask(task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			log.Printf("[worker-pool] task panicked, worker continues: %v", r)
		}
		p.stats.completed.Add(1)
		depth := p.inFlight.Add(-1)
		if p.sink != nil {
			p.sink.SetQueueDepth(float64(depth))
			p.sink.ObserveTaskDuration(time.Since(start).Seconds())
		}
	}()
	task()
}

// Drain moves the pool to Draining: queued work still runs, but further
// submissions are rejected. It returns once every worker has exited
// (i.e. the queue ran dry).
func (p *WorkerPool) Drain() {
	p.state.CompareAndSwap(int32(StateActive), int32(StateDraining))
	p.wake.Broadcast()
	p.wg.Wait()
	p.state.Store(int32(StateInactive))
	close(p.stopTicker)
}

// Terminate moves the pool to Terminating: workers stop at their next
// loop boundary, discarding anything left in the queue. It returns once
// every worker has exited.
func (p *WorkerPool) Terminate() {
	p.state.Store(int32(StateTerminating))
	p.wake.Broadcast()
	p.wg.Wait()
	p.state.Store(int32(StateInactive))
	close(p.stopTicker)
}

// State reports the pool's current lifecycle state.
func (p *WorkerPool) State() PoolState {
	return PoolState(p.state.Load())
}

// Stats returns pool statistics.
func (p *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: p.stats.submitted.Load(),
		TasksCompleted: p.stats.completed.Load(),
		TasksRejected:  p.stats.rejected.Load(),
		TaskPanics:     p.stats.panics.Load(),
	}
}

// WorkerPoolStats contains pool statistics.
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksRejected  uint64
	TaskPanics     uint64
}

func (s PoolState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateTerminating:
		return "terminating"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}
