//go:build !(linux && cgo && amd64)

package catmem

import "sync/atomic"

// storeFence/loadFence fall back to a fenced no-op on platforms without the
// cgo x86 fence: the cursors are already atomic.Uint64/atomic.Bool, whose
// Go memory model guarantees are sufficient within one process. Pure Go
// cannot emit a bare CPU fence instruction, so cross-process callers on
// these platforms rely on the atomics' acquire/release semantics alone.
func storeFence() {
	var dummy atomic.Uint32
	dummy.Store(dummy.Load())
}

func loadFence() {
	var dummy atomic.Uint32
	_ = dummy.Load()
}
