package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocRejectsZeroSize(t *testing.T) {
	_, err := Alloc(0)
	require.Error(t, err)
	require.True(t, IsInvalidSize(err))
}

func TestAllocFreeRoundTrip(t *testing.T) {
	sga, err := Alloc(128)
	require.NoError(t, err)
	require.Equal(t, uint32(1), sga.NumSegs)
	require.NoError(t, Free(sga))
}

func TestFreeRejectsMultiSegment(t *testing.T) {
	sga, err := Alloc(16)
	require.NoError(t, err)
	sga.NumSegs = 2
	err = Free(sga)
	require.Error(t, err)
	require.True(t, IsMultiSegment(err))
}

func TestCloneIsByteIdenticalAndIndependent(t *testing.T) {
	sga, err := Alloc(4)
	require.NoError(t, err)
	require.NoError(t, sga.Segments[0].Buf.Set(0, 0x42))

	clone, err := Clone(sga)
	require.NoError(t, err)
	got, err := clone.Segments[0].Buf.At(0)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), got)

	// Cloning must not alias storage: mutating the original after Clone must
	// not be visible through the clone, and freeing both independently must
	// not panic.
	require.NoError(t, sga.Segments[0].Buf.Set(0, 0x99))
	got2, err := clone.Segments[0].Buf.At(0)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), got2, "clone must not alias the original's storage")

	require.NoError(t, Free(sga))
	require.NoError(t, Free(clone))
}

func TestIntoSgaWrapsBuffer(t *testing.T) {
	b, err := New(32)
	require.NoError(t, err)
	sga := IntoSga(b)
	require.Equal(t, uint32(1), sga.NumSegs)
	require.Equal(t, uint32(32), sga.Segments[0].Len)
}
