package catmem

import (
	"context"
	"syscall"

	"github.com/HelloKayT/demikernel-go/internal/constants"
	"github.com/HelloKayT/demikernel-go/internal/scheduler"
)

// prepareClose moves Open -> Closing, refusing a second close attempt.
// Grounded on catcollar's prepare_close/commit/abort triple
// supplemented feature): a coroutine spawn failure after this call must be
// able to roll the endpoint back to Open via abortClose.
func (e *Endpoint) prepareClose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st != stateOpen {
		return syscall.EINVAL
	}
	e.st = stateClosing
	return nil
}

func (e *Endpoint) commitClosed() {
	e.mu.Lock()
	e.st = stateClosed
	e.mu.Unlock()
}

func (e *Endpoint) abortClose() {
	e.mu.Lock()
	if e.st == stateClosing {
		e.st = stateOpen
	}
	e.mu.Unlock()
}

// Close synchronously tears the endpoint down: commit EOF ignoring
// retries, mark Closed, then cancel every pending operation with
// ECANCELED. Only the push side actually writes an EOF marker; the pop
// side just stops accepting new operations.
func (e *Endpoint) Close() error {
	if err := e.prepareClose(); err != nil {
		return err
	}
	if e.side == SidePush {
		e.ring.forceWriteEOF()
	}
	e.commitClosed()
	e.cancelPendingOps(syscall.ECANCELED)
	return nil
}

// AsyncClose spawns a coroutine that retries try_close up to
// MaxRetriesPushEOF, yielding between attempts, cancelling pending
// operations once it settles either way.
func (e *Endpoint) AsyncClose() (*scheduler.TaskHandle, error) {
	if err := e.prepareClose(); err != nil {
		return nil, err
	}
	handle := e.sched.Insert("catmem::do_async_close", e.doAsyncClose)
	if handle == nil {
		e.abortClose()
		return nil, syscall.EAGAIN
	}
	return handle, nil
}

func (e *Endpoint) doAsyncClose(ctx context.Context, y *scheduler.Yielder) (any, error) {
	if e.side != SidePush {
		e.commitClosed()
		e.cancelPendingOps(syscall.ECANCELED)
		return nil, nil
	}

	for i := 0; i < constants.MaxRetriesPushEOF; i++ {
		if e.ring.tryWriteEOF() {
			e.commitClosed()
			e.cancelPendingOps(syscall.ECANCELED)
			return nil, nil
		}
		select {
		case <-ctx.Done():
			e.abortClose()
			return nil, ctx.Err()
		case <-e.clock.After(constants.DefaultAckDelayTimeout):
		}
	}

	e.commitClosed()
	e.cancelPendingOps(syscall.EIO)
	return nil, syscall.EIO
}

// cancelPendingOps drains the pending-operations map, waking every
// registered yielder with cause so its coroutine returns that error.
func (e *Endpoint) cancelPendingOps(cause error) {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[uint64]*scheduler.YielderHandle)
	e.mu.Unlock()

	for _, yh := range pending {
		yh.WakeWith(cause)
	}
}
