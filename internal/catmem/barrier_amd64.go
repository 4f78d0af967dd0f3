//go:build linux && cgo && amd64

package catmem

/*
#include <stdint.h>

static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// storeFence issues an x86 SFENCE so a concurrent reader across the shared
// mapping never observes the advanced tail before the byte it points past.
func storeFence() {
	C.sfence_impl()
}

// loadFence issues an x86 MFENCE before reading the cursors, matching the
// producer side's store fence.
func loadFence() {
	C.mfence_impl()
}
