package scheduler

import (
	"context"
	"time"
)

// Yielder is the per-operation suspension primitive a coroutine owns
// yielder.Yield blocks until the coroutine is woken by its
// YielderHandle or the caller's context is cancelled.
//
// Multiple wakes before a resume collapse to one; the most recently
// delivered result wins (resolved this way: last
// writer wins, implemented with a 1-buffered channel that a subsequent send
// drains and replaces rather than blocks on).
type Yielder struct {
	wake chan error
}

// NewYielder creates a Yielder for a single coroutine invocation.
func NewYielder() *Yielder {
	return &Yielder{wake: make(chan error, 1)}
}

// Handle returns the external wake/cancel channel for this Yielder.
func (y *Yielder) Handle() *YielderHandle {
	return &YielderHandle{y: y}
}

// Yield suspends the calling goroutine until the next wake (returns the
// wake's error, possibly nil for a plain resume) or until ctx is done
// (returns ctx.Err()).
func (y *Yielder) Yield(ctx context.Context) error {
	select {
	case err := <-y.wake:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// YieldUntil suspends like Yield, but also resumes (returning nil) once
// deadline fires, so a caller with no explicit waker wired to it still
// retries on a bounded poll interval instead of blocking forever.
func (y *Yielder) YieldUntil(ctx context.Context, deadline <-chan time.Time) error {
	select {
	case err := <-y.wake:
		return err
	case <-deadline:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// YielderHandle is the unified wake/cancel channel external code uses to
// resume a suspended coroutine.
type YielderHandle struct {
	y *Yielder
}

// WakeWith resumes the coroutine's next Yield call with err (nil for plain
// success, non-nil to inject a failure/cancellation). If a previous wake is
// still pending and unread, it is replaced — last writer wins.
func (h *YielderHandle) WakeWith(err error) {
	for {
		select {
		case h.y.wake <- err:
			return
		default:
			// Drain the stale pending wake, then retry the send. A
			// concurrent Yield racing this drain simply receives
			// whichever value wins the race, which is fine: both are
			// "a wake happened", and the caller only needed one.
			select {
			case <-h.y.wake:
			default:
			}
		}
	}
}
