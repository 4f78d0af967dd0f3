// Package buffer implements the owned, trim-able byte regions that cross
// the C ABI boundary as scatter-gather descriptors.
package buffer

import (
	"fmt"
	"unsafe"
)

// MaxLen is the largest length a Buffer may report.
const MaxLen = 65535

// Buffer is a contiguous byte region with cheap clone semantics: a logical
// View shares the backing storage, so writes through one view are visible
// through another (this is documented, not accidental aliasing) while a
// DeepClone allocates fresh storage so the caller keeps independent
// ownership of the original.
type Buffer struct {
	data []byte
}

// New allocates a zeroed buffer of the given size from the shared pool.
// size=0 is rejected by the caller (sga.Alloc), not here, so Buffer stays
// usable as a zero-length view after Trim.
func New(size uint32) (*Buffer, error) {
	if size > MaxLen {
		return nil, fmt.Errorf("buffer: size %d exceeds max %d", size, MaxLen)
	}
	data := GetBuffer(size)
	clear(data)
	return &Buffer{data: data}, nil
}

// FromBytes wraps an existing slice without copying. Used internally where
// the caller already owns storage it wants to hand to a Buffer.
func FromBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Len returns the buffer's current length.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes exposes the backing slice directly. Callers that only need to read
// or write through the slice (rather than go through At/Set) can use this;
// it aliases the same storage as View().
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// At reads the byte at index i.
func (b *Buffer) At(i int) (byte, error) {
	if i < 0 || i >= len(b.data) {
		return 0, fmt.Errorf("buffer: index %d out of range [0,%d)", i, len(b.data))
	}
	return b.data[i], nil
}

// Set writes the byte at index i.
func (b *Buffer) Set(i int, v byte) error {
	if i < 0 || i >= len(b.data) {
		return fmt.Errorf("buffer: index %d out of range [0,%d)", i, len(b.data))
	}
	b.data[i] = v
	return nil
}

// Trim shrinks the tail by n bytes in O(1), failing only if n exceeds the
// current length.
func (b *Buffer) Trim(n uint32) error {
	if int(n) > len(b.data) {
		return fmt.Errorf("buffer: trim %d exceeds length %d", n, len(b.data))
	}
	b.data = b.data[:len(b.data)-int(n)]
	return nil
}

// View returns a logical clone that shares the backing storage: a write
// through the returned Buffer is visible through b and vice versa.
func (b *Buffer) View() *Buffer {
	return &Buffer{data: b.data}
}

// DeepClone allocates fresh storage and copies b's contents into it. Used
// by sga.Clone, whose caller retains ownership of the original descriptor.
func (b *Buffer) DeepClone() *Buffer {
	out := FromBytes(append([]byte(nil), b.data...))
	return out
}

// Release returns the backing storage to the shared pool. The Buffer must
// not be used afterward; this mirrors the reclaim-exactly-once contract of
// the reclaim-exactly-once invariant on the C-ABI crossing.
func (b *Buffer) Release() {
	if b == nil || b.data == nil {
		return
	}
	PutBuffer(b.data)
	b.data = nil
}

// IntoRaw yields an unmanaged pointer+length pair, transferring ownership
// out of the Go runtime's tracking. The Buffer itself must not be used
// afterward. Pairs with FromRawParts.
func (b *Buffer) IntoRaw() (unsafe.Pointer, uint32) {
	if len(b.data) == 0 {
		return nil, 0
	}
	ptr := unsafe.Pointer(&b.data[0])
	length := uint32(len(b.data))
	b.data = nil
	return ptr, length
}

// FromRawParts reclaims a pointer+length pair previously produced by
// IntoRaw. Calling this twice on the same pointer is undefined behavior,
// the pointer is no longer tracked by Go
// once it has been handed across the ABI boundary once.
func FromRawParts(ptr unsafe.Pointer, length uint32) *Buffer {
	if ptr == nil || length == 0 {
		return &Buffer{data: nil}
	}
	data := unsafe.Slice((*byte)(ptr), int(length))
	return &Buffer{data: data}
}
