package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsOversized(t *testing.T) {
	_, err := New(MaxLen + 1)
	require.Error(t, err)
}

func TestTrimShrinksTail(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)
	require.NoError(t, b.Trim(4))
	require.Equal(t, 6, b.Len())
}

func TestTrimRejectsOverlongTrim(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	require.Error(t, b.Trim(5))
}

func TestViewSharesBackingStorage(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	v := b.View()
	require.NoError(t, v.Set(0, 0xAB))
	got, err := b.At(0)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), got)
}

func TestDeepCloneDoesNotAlias(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)
	require.NoError(t, b.Set(0, 0x01))
	clone := b.DeepClone()
	require.NoError(t, clone.Set(0, 0x02))
	got, err := b.At(0)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), got)
}

func TestIntoRawRoundTrip(t *testing.T) {
	b, err := New(8)
	require.NoError(t, err)
	require.NoError(t, b.Set(3, 0x7F))
	ptr, length := b.IntoRaw()
	require.Equal(t, uint32(8), length)

	reclaimed := FromRawParts(ptr, length)
	got, err := reclaimed.At(3)
	require.NoError(t, err)
	require.Equal(t, byte(0x7F), got)
}

func TestIntoRawEmptyBuffer(t *testing.T) {
	b, err := New(0)
	require.NoError(t, err)
	ptr, length := b.IntoRaw()
	require.Nil(t, ptr)
	require.Equal(t, uint32(0), length)
}
