package ioqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocAssignsUniqueQDescs(t *testing.T) {
	table := NewIoQueueTable()
	a := table.Alloc(QueueKindTCPSocket, "socket-a")
	b := table.Alloc(QueueKindTCPSocket, "socket-b")
	require.NotEqual(t, a, b)
	require.Equal(t, 2, table.Len())
}

func TestGetReturnsAllocatedHandle(t *testing.T) {
	table := NewIoQueueTable()
	qd := table.Alloc(QueueKindMemoryRing, "ring-handle")
	q, ok := table.Get(qd)
	require.True(t, ok)
	require.Equal(t, QueueKindMemoryRing, q.Kind())
	require.Equal(t, "ring-handle", q.Handle())
}

func TestGetUnknownQDescFails(t *testing.T) {
	table := NewIoQueueTable()
	_, ok := table.Get(QDesc(999))
	require.False(t, ok)
}

func TestFreeRemovesQueueAndIsNotReusable(t *testing.T) {
	table := NewIoQueueTable()
	qd := table.Alloc(QueueKindUDPSocket, nil)

	q, ok := table.Free(qd)
	require.True(t, ok)
	require.NotNil(t, q)

	_, ok = table.Get(qd)
	require.False(t, ok, "freed QDesc must not resolve to a queue")

	_, ok = table.Free(qd)
	require.False(t, ok, "double free must be reported, not panic")
}

func TestFreedQDescIsNeverReissued(t *testing.T) {
	table := NewIoQueueTable()
	a := table.Alloc(QueueKindTCPSocket, nil)
	table.Free(a)
	b := table.Alloc(QueueKindTCPSocket, nil)
	require.NotEqual(t, a, b)
}

func TestInflightCounting(t *testing.T) {
	table := NewIoQueueTable()
	qd := table.Alloc(QueueKindTCPSocket, nil)
	q, _ := table.Get(qd)

	require.Equal(t, 0, q.InflightCount())
	q.IncInflight()
	q.IncInflight()
	require.Equal(t, 2, q.InflightCount())
	q.DecInflight()
	require.Equal(t, 1, q.InflightCount())
	q.DecInflight()
	q.DecInflight()
	require.Equal(t, 0, q.InflightCount(), "inflight count must not go negative")
}
