package demikernel

import (
	"errors"
	"fmt"
	"syscall"
)

// Fail is the structured error every libOS operation returns. The errno IS
// the public taxonomy here rather than a secondary high-level
// code layered on top of it, since the whole point of the C ABI is that
// callers branch on errno.
type Fail struct {
	Op    string        // operation that failed, e.g. "bind", "tcp::receive"
	Errno syscall.Errno // POSIX errno, 0 if not applicable
	Cause string        // human-readable detail
	Inner error         // wrapped error, if any
}

func (f *Fail) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("demikernel: %s (errno=%d)", f.Cause, f.Errno)
	}
	return fmt.Sprintf("demikernel: %s: %s (errno=%d)", f.Op, f.Cause, f.Errno)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (f *Fail) Unwrap() error {
	return f.Inner
}

// Is compares by errno, so callers can write errors.Is(err, syscall.EAGAIN)
// against a *Fail.
func (f *Fail) Is(target error) bool {
	if target == nil {
		return false
	}
	if errno, ok := target.(syscall.Errno); ok {
		return f.Errno == errno
	}
	if tf, ok := target.(*Fail); ok {
		return f.Errno == tf.Errno
	}
	return false
}

// NewFail builds a *Fail for the given operation/errno/cause, matching the
// errno table.
func NewFail(op string, errno syscall.Errno, cause string) *Fail {
	return &Fail{Op: op, Errno: errno, Cause: cause}
}

// WrapFail attaches operation context to an existing error without losing
// its errno if it already carries one, anywhere in the error chain (so a
// lower package that returns a bare or fmt.Errorf-wrapped syscall.Errno
// still surfaces the right errno at the facade boundary).
func WrapFail(op string, inner error) *Fail {
	if inner == nil {
		return nil
	}
	var f *Fail
	if errors.As(inner, &f) {
		return &Fail{Op: op, Errno: f.Errno, Cause: f.Cause, Inner: f.Inner}
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Fail{Op: op, Errno: errno, Cause: inner.Error(), Inner: inner}
	}
	return &Fail{Op: op, Errno: syscall.EIO, Cause: inner.Error(), Inner: inner}
}

// Errno-specific constructors, one per recognized failure mode.
func ErrBadQueueDescriptor(op string) *Fail {
	return NewFail(op, syscall.EBADF, "unknown queue descriptor")
}

func ErrInvalid(op, cause string) *Fail {
	return NewFail(op, syscall.EINVAL, cause)
}

func ErrNotSupported(op, cause string) *Fail {
	return NewFail(op, syscall.ENOTSUP, cause)
}

func ErrAddrInUse(op, cause string) *Fail {
	return NewFail(op, syscall.EADDRINUSE, cause)
}

func ErrAgain(op, cause string) *Fail {
	return NewFail(op, syscall.EAGAIN, cause)
}

func ErrBadMsg(op, cause string) *Fail {
	return NewFail(op, syscall.EBADMSG, cause)
}

func ErrConnRefused(op, cause string) *Fail {
	return NewFail(op, syscall.ECONNREFUSED, cause)
}

func ErrTimedOut(op, cause string) *Fail {
	return NewFail(op, syscall.ETIMEDOUT, cause)
}

func ErrCanceled(op, cause string) *Fail {
	return NewFail(op, syscall.ECANCELED, cause)
}

func ErrIO(op, cause string) *Fail {
	return NewFail(op, syscall.EIO, cause)
}

// IsErrno reports whether err is a *Fail carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	if err == nil {
		return false
	}
	var f *Fail
	if errors.As(err, &f) {
		return f.Errno == errno
	}
	return false
}
