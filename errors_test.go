package demikernel

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailIsErrno(t *testing.T) {
	f := ErrAddrInUse("bind", "127.0.0.1:5555 already bound")
	require.True(t, errors.Is(f, syscall.EADDRINUSE))
	require.False(t, errors.Is(f, syscall.EINVAL))
}

func TestIsErrnoHelper(t *testing.T) {
	f := ErrConnRefused("tcp::receive", "backlog full")
	require.True(t, IsErrno(f, syscall.ECONNREFUSED))
	require.False(t, IsErrno(f, syscall.ETIMEDOUT))
	require.False(t, IsErrno(errors.New("plain"), syscall.ECONNREFUSED))
	require.False(t, IsErrno(nil, syscall.ECONNREFUSED))
}

func TestWrapFailPreservesErrno(t *testing.T) {
	inner := ErrBadMsg("tcp::receive", "expecting ACK")
	wrapped := WrapFail("passive_open::background", inner)
	require.Equal(t, syscall.EBADMSG, wrapped.Errno)
	require.ErrorIs(t, wrapped, syscall.EBADMSG)
}

func TestWrapFailFromErrno(t *testing.T) {
	wrapped := WrapFail("catmem::try_close", syscall.EIO)
	require.Equal(t, syscall.EIO, wrapped.Errno)
}

func TestWrapFailNil(t *testing.T) {
	require.Nil(t, WrapFail("op", nil))
}

func TestFailErrorString(t *testing.T) {
	f := NewFail("socket", syscall.ENOTSUP, "AF_INET6 unsupported")
	require.Contains(t, f.Error(), "socket")
	require.Contains(t, f.Error(), "AF_INET6 unsupported")
}
