// Package ioqueue implements the queue-descriptor table the libOS façade
// allocates from on every socket/memory-ring open: a bijection between a
// stable QDesc and the underlying queue state (a listening or connected TCP
// socket, a UDP socket, or a catmem ring endpoint).
package ioqueue

import "sync"

// QDesc is the stable handle a caller gets back from socket()/queue-open
// calls, analogous to a POSIX file descriptor.
type QDesc uint32

// QueueKind distinguishes what a Queue's Handle actually is, since Go has
// no tagged-union type: callers type-assert Handle() based on Kind().
type QueueKind int

const (
	QueueKindTCPSocket QueueKind = iota
	QueueKindUDPSocket
	QueueKindMemoryRing
)

func (k QueueKind) String() string {
	switch k {
	case QueueKindTCPSocket:
		return "tcp-socket"
	case QueueKindUDPSocket:
		return "udp-socket"
	case QueueKindMemoryRing:
		return "memory-ring"
	default:
		return "unknown"
	}
}

// Queue is one entry in the table: a kind tag, the domain object it stands
// for, and the in-flight operation count close() consults before tearing it
// down.
type Queue struct {
	mu       sync.Mutex
	kind     QueueKind
	handle   any
	inflight int
}

func newQueue(kind QueueKind, handle any) *Queue {
	return &Queue{kind: kind, handle: handle}
}

func (q *Queue) Kind() QueueKind { return q.kind }
func (q *Queue) Handle() any     { return q.handle }

func (q *Queue) IncInflight() {
	q.mu.Lock()
	q.inflight++
	q.mu.Unlock()
}

func (q *Queue) DecInflight() {
	q.mu.Lock()
	if q.inflight > 0 {
		q.inflight--
	}
	q.mu.Unlock()
}

func (q *Queue) InflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// IoQueueTable is the allocator and lookup table for QDescs. QDescs are
// never reused once freed: the id space (2^32) is large relative to any
// process's lifetime socket churn, and never-reuse makes the descriptor-to-
// queue bijection trivially true instead of requiring generation counters.
type IoQueueTable struct {
	mu     sync.Mutex
	queues map[QDesc]*Queue
	nextID uint32
}

func NewIoQueueTable() *IoQueueTable {
	return &IoQueueTable{queues: make(map[QDesc]*Queue)}
}

// Alloc admits a new queue of the given kind, returning its QDesc.
func (t *IoQueueTable) Alloc(kind QueueKind, handle any) QDesc {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	qd := QDesc(t.nextID)
	t.queues[qd] = newQueue(kind, handle)
	return qd
}

// Get looks up a live queue by descriptor.
func (t *IoQueueTable) Get(qd QDesc) (*Queue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[qd]
	return q, ok
}

// Free removes a queue from the table, returning it so the caller can warn
// about or drain any operations still in flight before it disappears.
func (t *IoQueueTable) Free(qd QDesc) (*Queue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[qd]
	if !ok {
		return nil, false
	}
	delete(t.queues, qd)
	return q, true
}

// Len returns the number of live queues, used by tests and diagnostics.
func (t *IoQueueTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues)
}
