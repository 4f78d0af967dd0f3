package buffer

import (
	"net"
)

// Segment is one scatter-gather entry: a Buffer plus its advertised length.
// The libOS core only ever populates exactly one.
type Segment struct {
	Buf *Buffer
	Len uint32
}

// Sgarray is the Go-side mirror of the C ABI scatter-gather descriptor
// a buffer handle, a segment count, and the segments
// themselves, plus an optional address for pushto/popfrom. Multi-segment
// arrays are reserved for a future revision and rejected everywhere.
type Sgarray struct {
	NumSegs  uint32
	Segments [1]Segment
	Addr     *net.UDPAddr // optional; Clone copies it, no operation in this core sets it
}

// Alloc allocates a Buffer of the given size and wraps it as a one-segment
// Sgarray. size=0 is EINVAL (the caller maps that to demikernel.ErrInvalid).
func Alloc(size uint32) (*Sgarray, error) {
	if size == 0 {
		return nil, errInvalidSize
	}
	buf, err := New(size)
	if err != nil {
		return nil, err
	}
	return &Sgarray{
		NumSegs:  1,
		Segments: [1]Segment{{Buf: buf, Len: size}},
	}, nil
}

// Free reclaims the underlying buffer. Fails if NumSegs != 1, matching
// the "reject until multi-segment is added" rule.
func Free(sga *Sgarray) error {
	if sga.NumSegs != 1 {
		return errMultiSegment
	}
	sga.Segments[0].Buf.Release()
	sga.Segments[0].Buf = nil
	return nil
}

// Clone deep-copies sga's buffer: the caller retains ownership of sga, so a
// refcount bump would alias storage the caller might still mutate.
func Clone(sga *Sgarray) (*Sgarray, error) {
	if sga.NumSegs != 1 {
		return nil, errMultiSegment
	}
	clone := sga.Segments[0].Buf.DeepClone()
	return &Sgarray{
		NumSegs:  1,
		Segments: [1]Segment{{Buf: clone, Len: sga.Segments[0].Len}},
		Addr:     sga.Addr,
	}, nil
}

// IntoSga hands a Buffer's ownership to an Sgarray, analogous to the
// Rust original's into_sga: the Buffer must not be used directly afterward.
func IntoSga(b *Buffer) *Sgarray {
	return &Sgarray{
		NumSegs:  1,
		Segments: [1]Segment{{Buf: b, Len: uint32(b.Len())}},
	}
}

// sentinel errors kept unexported: callers at the facade layer translate
// these into *demikernel.Fail with the right errno (EINVAL), since this
// package must not import the root package (it would cycle).
type sgaError string

func (e sgaError) Error() string { return string(e) }

const (
	errInvalidSize  sgaError = "buffer: size must be > 0"
	errMultiSegment sgaError = "buffer: sgarray must have exactly one segment"
)

// IsInvalidSize/IsMultiSegment let the facade distinguish these without a
// direct type dependency on the unexported sgaError values.
func IsInvalidSize(err error) bool   { return err == errInvalidSize }
func IsMultiSegment(err error) bool  { return err == errMultiSegment }
