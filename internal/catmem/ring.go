// Package catmem implements the shared-memory SPSC byte-ring queue: a
// "push" endpoint and a "pop" endpoint over one ring, an in-band EOF
// protocol, and cooperative close semantics.
package catmem

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/HelloKayT/demikernel-go/internal/constants"
)

// sharedRing is the byte ring itself: a power-of-two-sized backing region
// plus atomic head/tail cursors and an EOF marker position. Grounded on the
// teacher's mmapQueues pattern (internal/queue/runner.go), generalized from
// raw syscall.Syscall(SYS_MMAP...) to golang.org/x/sys/unix.Mmap.
type sharedRing struct {
	buf      []byte
	capacity uint64

	head atomic.Uint64 // next read offset, consumer-owned
	tail atomic.Uint64 // next write offset, producer-owned

	eofSet atomic.Bool
	eofPos atomic.Uint64
}

// newSharedRing mmaps an anonymous shared region to back the ring. capacity
// must be a power of two; Create passes DefaultRingCapacity.
func newSharedRing(capacity uint64) (*sharedRing, error) {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("catmem: ring capacity must be a power of two, got %d", capacity)
	}
	buf, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("catmem: mmap ring region: %w", err)
	}
	return &sharedRing{buf: buf, capacity: capacity}, nil
}

// close unmaps the ring's backing region. Not safe to call while either
// endpoint is still operating on the ring.
func (r *sharedRing) close() error {
	return unix.Munmap(r.buf)
}

func defaultRingCapacity() uint64 {
	return uint64(constants.DefaultRingCapacity)
}

// tryPush writes one byte if the ring has room, publishing it with a store
// fence before advancing the tail so a concurrent reader never observes an
// advanced tail before the byte it points past is visible.
func (r *sharedRing) tryPush(b byte) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= r.capacity {
		return false
	}
	r.buf[tail%r.capacity] = b
	storeFence()
	r.tail.Store(tail + 1)
	return true
}

// tryPop reads one byte if available, or reports EOF if the consumer has
// caught up to a committed EOF marker.
func (r *sharedRing) tryPop() (b byte, hasByte bool, eof bool) {
	loadFence()
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		if r.eofSet.Load() && head == r.eofPos.Load() {
			return 0, false, true
		}
		return 0, false, false
	}
	b = r.buf[head%r.capacity]
	r.head.Store(head + 1)
	return b, true, false
}

// tryWriteEOF reserves the EOF marker at the current tail position,
// failing if the ring has no room for it (the consumer hasn't drained
// enough to make `tail` reachable yet).
func (r *sharedRing) tryWriteEOF() bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= r.capacity {
		return false
	}
	r.eofPos.Store(tail)
	r.eofSet.Store(true)
	return true
}

// forceWriteEOF sets the EOF marker unconditionally, used by the
// synchronous close path which commits EOF "ignoring retries" per
// since the endpoint is being torn down regardless.
func (r *sharedRing) forceWriteEOF() {
	r.eofPos.Store(r.tail.Load())
	r.eofSet.Store(true)
}
