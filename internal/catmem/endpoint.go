package catmem

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/HelloKayT/demikernel-go/internal/constants"
	"github.com/HelloKayT/demikernel-go/internal/scheduler"
)

// ringPollInterval bounds how long a push/pop retry loop can sleep before
// re-checking the ring, matching the facade's accept-loop poll interval so
// neither side can starve waiting on a wake that never comes.
const ringPollInterval = 1 * time.Millisecond

// Side is which half of a ring an Endpoint may operate: PushOnly or
// PopOnly. Sidedness is enforced on every operation.
type Side int

const (
	SidePush Side = iota
	SidePop
)

type state int

const (
	stateOpen state = iota
	stateClosing
	stateClosed
)

// Endpoint is one side of a MemoryRing: a push-only or pop-only view with
// its own open/closing/closed state and pending-operation bookkeeping.
type Endpoint struct {
	name  string
	side  Side
	ring  *sharedRing
	sched *scheduler.Scheduler
	clock scheduler.Clock

	mu      sync.Mutex
	st      state
	pending map[uint64]*scheduler.YielderHandle
}

// Create allocates a fresh named ring and returns the requested side's
// Endpoint over it.
func Create(name string, side Side, sched *scheduler.Scheduler, clock scheduler.Clock) (*Endpoint, error) {
	ring, err := createRing(name, defaultRingCapacity())
	if err != nil {
		return nil, err
	}
	return newEndpoint(name, side, ring, sched, clock), nil
}

// Open attaches to an existing named ring as the requested side.
func Open(name string, side Side, sched *scheduler.Scheduler, clock scheduler.Clock) (*Endpoint, error) {
	ring, err := openRing(name)
	if err != nil {
		return nil, err
	}
	return newEndpoint(name, side, ring, sched, clock), nil
}

func newEndpoint(name string, side Side, ring *sharedRing, sched *scheduler.Scheduler, clock scheduler.Clock) *Endpoint {
	return &Endpoint{
		name:    name,
		side:    side,
		ring:    ring,
		sched:   sched,
		clock:   clock,
		pending: make(map[uint64]*scheduler.YielderHandle),
	}
}

func (e *Endpoint) isOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == stateOpen
}

func (e *Endpoint) registerPending(h *scheduler.TaskHandle) {
	e.mu.Lock()
	e.pending[h.ID()] = h.Yielder()
	e.mu.Unlock()
}

// TryPush writes one byte without blocking. Fails EINVAL if this endpoint
// is PopOnly or not open.
func (e *Endpoint) TryPush(b byte) (bool, error) {
	if e.side != SidePush {
		return false, syscall.EINVAL
	}
	if !e.isOpen() {
		return false, syscall.EINVAL
	}
	return e.ring.tryPush(b), nil
}

// TryPop reads one byte without blocking, or reports EOF. Fails EINVAL if
// this endpoint is PushOnly or not open.
func (e *Endpoint) TryPop() (b byte, hasByte bool, eof bool, err error) {
	if e.side != SidePop {
		return 0, false, false, syscall.EINVAL
	}
	if !e.isOpen() {
		return 0, false, false, syscall.EINVAL
	}
	b, hasByte, eof = e.ring.tryPop()
	return b, hasByte, eof, nil
}

// TryClose attempts to write the EOF marker, spin-retrying up to
// MaxRetriesPushEOF times against a ring that has no room for it yet.
func (e *Endpoint) TryClose() error {
	if e.side != SidePush {
		return syscall.EINVAL
	}
	for i := 0; i < constants.MaxRetriesPushEOF; i++ {
		if e.ring.tryWriteEOF() {
			return nil
		}
	}
	return syscall.EIO
}

// Push spawns a coroutine that writes every byte of data, yielding between
// retries while the ring is full, returning its task handle as a token.
func (e *Endpoint) Push(data []byte) (*scheduler.TaskHandle, error) {
	if e.side != SidePush {
		return nil, syscall.EINVAL
	}
	if !e.isOpen() {
		return nil, syscall.EINVAL
	}
	handle := e.sched.Insert("catmem::do_push", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		return nil, e.doPush(ctx, y, data)
	})
	if handle == nil {
		return nil, syscall.EAGAIN
	}
	e.registerPending(handle)
	return handle, nil
}

// Pop spawns a coroutine that reads up to size bytes (RecvBufSizeMax if
// size<=0), returning its task handle as a token. The coroutine's result is
// a *PopResult.
func (e *Endpoint) Pop(size int) (*scheduler.TaskHandle, error) {
	if e.side != SidePop {
		return nil, syscall.EINVAL
	}
	if !e.isOpen() {
		return nil, syscall.EINVAL
	}
	if size <= 0 {
		size = constants.RecvBufSizeMax
	}
	handle := e.sched.Insert("catmem::do_pop", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		return e.doPop(ctx, y, size)
	})
	if handle == nil {
		return nil, syscall.EAGAIN
	}
	e.registerPending(handle)
	return handle, nil
}

// PopResult is the value a Pop coroutine resolves to.
type PopResult struct {
	Data []byte
	EOF  bool
}

func (e *Endpoint) doPush(ctx context.Context, y *scheduler.Yielder, data []byte) error {
	for _, b := range data {
		for {
			ok, err := e.TryPush(b)
			if err != nil {
				if !e.isOpen() {
					// The endpoint was closed while this push was in flight.
					return syscall.ECANCELED
				}
				return err
			}
			if ok {
				break
			}
			if err := y.YieldUntil(ctx, e.clock.After(ringPollInterval)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Endpoint) doPop(ctx context.Context, y *scheduler.Yielder, size int) (*PopResult, error) {
	buf := make([]byte, 0, size)
	for len(buf) < size {
		b, has, eof, err := e.TryPop()
		if err != nil {
			if !e.isOpen() {
				// The endpoint was closed while this pop was in flight.
				return nil, syscall.ECANCELED
			}
			return nil, err
		}
		if eof {
			return &PopResult{Data: buf, EOF: true}, nil
		}
		if has {
			buf = append(buf, b)
			continue
		}
		if len(buf) > 0 {
			// Short read: hand back what we have rather than blocking for more.
			return &PopResult{Data: buf, EOF: false}, nil
		}
		if err := y.YieldUntil(ctx, e.clock.After(ringPollInterval)); err != nil {
			return nil, err
		}
	}
	return &PopResult{Data: buf, EOF: false}, nil
}
