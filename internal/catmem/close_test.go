package catmem

import (
	"context"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HelloKayT/demikernel-go/internal/scheduler"
)

func TestAsyncClosePushSideWritesEOFAndCommits(t *testing.T) {
	name := freshRingName(t)
	sched := scheduler.New(0)
	pusher, err := Create(name, SidePush, sched, fakeClock{})
	require.NoError(t, err)
	t.Cleanup(func() { releaseRing(name) })

	handle, err := pusher.AsyncClose()
	require.NoError(t, err)

	_, taskErr, ok := handle.Wait(context.Background())
	require.True(t, ok)
	require.NoError(t, taskErr)

	pusher.mu.Lock()
	st := pusher.st
	pusher.mu.Unlock()
	require.Equal(t, stateClosed, st)
}

func TestAsyncClosePopSideCommitsImmediately(t *testing.T) {
	name := freshRingName(t)
	sched := scheduler.New(0)
	_, err := Create(name, SidePush, sched, fakeClock{})
	require.NoError(t, err)
	t.Cleanup(func() { releaseRing(name) })
	popper, err := Open(name, SidePop, sched, fakeClock{})
	require.NoError(t, err)

	handle, err := popper.AsyncClose()
	require.NoError(t, err)
	_, taskErr, ok := handle.Wait(context.Background())
	require.True(t, ok)
	require.NoError(t, taskErr)
}

func TestDoubleCloseIsRejected(t *testing.T) {
	name := freshRingName(t)
	sched := scheduler.New(0)
	pusher, err := Create(name, SidePush, sched, fakeClock{})
	require.NoError(t, err)
	t.Cleanup(func() { releaseRing(name) })

	require.NoError(t, pusher.Close())
	require.Equal(t, syscall.EINVAL, pusher.Close())
}

func TestAsyncCloseFailsToSpawnWhenSchedulerFull(t *testing.T) {
	name := freshRingName(t)
	sched := scheduler.New(1)
	pusher, err := Create(name, SidePush, sched, fakeClock{})
	require.NoError(t, err)
	t.Cleanup(func() { releaseRing(name) })

	block := make(chan struct{})
	blocker := sched.Insert("blocker", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		<-block
		return nil, nil
	})
	require.NotNil(t, blocker)

	handle, err := pusher.AsyncClose()
	require.Nil(t, handle)
	require.Equal(t, syscall.EAGAIN, err)

	pusher.mu.Lock()
	st := pusher.st
	pusher.mu.Unlock()
	require.Equal(t, stateOpen, st, "a failed spawn must roll the endpoint back to Open")

	close(block)
}
