// Package scheduler implements the cooperative task pool and queue-token
// protocol: tasks are admitted with a stable
// 64-bit id that the libOS façade hands back to the caller as a QToken, and
// a task can be looked up, polled for completion, and finally removed to
// collect its result exactly once.
//
// Go has no stackful coroutines, so each task runs as its own goroutine;
// the "single-threaded cooperative" contract is
// preserved at the protocol level (stable ids, arena + handle indirection so
// no task ever holds a raw pointer into the scheduler, explicit suspension
// via Yielder) rather than by literally time-slicing one OS thread. Poll is
// safe to call reentrantly and from any goroutine.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// TaskFunc is the body of a coroutine. It receives a context (cancelled on
// Deschedule) and the Yielder it must suspend on.
type TaskFunc func(ctx context.Context, y *Yielder) (any, error)

// TaskHandle is the stable, opaque reference a caller holds to an in-flight
// or completed task. Its ID doubles as the libOS's QToken.
type TaskHandle struct {
	id     uint64
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	yield  *Yielder

	mu        sync.Mutex
	result    any
	err       error
	completed bool
}

// ID returns the stable 64-bit task identifier.
func (h *TaskHandle) ID() uint64 { return h.id }

// Name returns the diagnostic name the task was inserted with.
func (h *TaskHandle) Name() string { return h.name }

// Completed reports whether the task has produced a final result.
func (h *TaskHandle) Completed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

// Yielder returns the handle's YielderHandle so external code (e.g. the TCP
// passive-open ACK path) can wake it directly.
func (h *TaskHandle) Yielder() *YielderHandle {
	return h.yield.Handle()
}

// Deschedule cancels the task's context without waiting for it to observe
// the cancellation. Used by PassiveSocket.receive to stop a SYN+ACK retry
// coroutine the moment the final ACK arrives.
func (h *TaskHandle) Deschedule() {
	h.cancel()
}

// Wait blocks until the task completes or ctx is done, returning the
// task's final value/error in the former case.
func (h *TaskHandle) Wait(ctx context.Context) (any, error, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err, true
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

// Scheduler owns a set of tasks, admitting them under unique 64-bit ids and
// letting external code look them up, poll for readiness, and remove a
// completed one to collect its result.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[uint64]*TaskHandle
	nextID uint64
	ready  chan uint64
}

// New creates an empty Scheduler. capacityHint bounds the admission backlog
// before Insert starts failing with "scheduler full" (mapped to EAGAIN by
// the façade) under resource exhaustion.
func New(capacityHint int) *Scheduler {
	if capacityHint <= 0 {
		capacityHint = 4096
	}
	return &Scheduler{
		tasks: make(map[uint64]*TaskHandle),
		ready: make(chan uint64, capacityHint),
	}
}

// Insert admits a task, assigning it a fresh id and starting it. It returns
// nil if the scheduler is at capacity.
func (s *Scheduler) Insert(name string, fn TaskFunc) *TaskHandle {
	s.mu.Lock()
	if len(s.tasks) >= cap(s.ready) {
		s.mu.Unlock()
		return nil
	}
	id := atomic.AddUint64(&s.nextID, 1)
	ctx, cancel := context.WithCancel(context.Background())
	h := &TaskHandle{
		id:     id,
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
		yield:  NewYielder(),
	}
	s.tasks[id] = h
	s.mu.Unlock()

	go func() {
		defer close(h.done)
		result, err := fn(ctx, h.yield)
		h.mu.Lock()
		h.result, h.err, h.completed = result, err, true
		h.mu.Unlock()
		select {
		case s.ready <- id:
		default:
			// Ready channel is full because Poll has not drained it; the
			// notification is dropped. Wait and Completed do not depend on it.
		}
	}()

	return h
}

// FromTaskID looks up a live task (completed or not) by its id.
func (s *Scheduler) FromTaskID(id uint64) (*TaskHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.tasks[id]
	return h, ok
}

// Remove extracts a completed task's final result and forgets it. Removing
// a task that has not completed is refused (ok=false) rather than invoking
// undefined behavior, per the "true impossibilities are fatal, everything
// else returns a Result" policy.
func (s *Scheduler) Remove(h *TaskHandle) (any, error, bool) {
	s.mu.Lock()
	_, tracked := s.tasks[h.id]
	s.mu.Unlock()
	if !tracked {
		return nil, nil, false
	}
	if !h.Completed() {
		return nil, nil, false
	}
	s.mu.Lock()
	delete(s.tasks, h.id)
	s.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err, true
}

// Poll runs one scheduling round: it drains every completion notification
// currently available without blocking, guaranteeing that every task ready
// at the time of the call is visible as completed before Poll returns (no
// infinite re-queue storms within one round).
func (s *Scheduler) Poll() {
	for {
		select {
		case <-s.ready:
		default:
			return
		}
	}
}

// NumTasks returns the number of tasks currently tracked (completed or
// not), used by admission bookkeeping and tests.
func (s *Scheduler) NumTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
