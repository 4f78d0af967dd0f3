package demikernel

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HelloKayT/demikernel-go/internal/catmem"
	"github.com/HelloKayT/demikernel-go/internal/ioqueue"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

func TestSocketBindListenRejectsDoubleBind(t *testing.T) {
	l := NewLibOS(wire.MacAddress{1, 1, 1, 1, 1, 1}, NewMockTransport())

	qd1, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	qd2, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)

	addr := SockAddr{IP: [4]byte{10, 0, 0, 1}, Port: 80}
	require.NoError(t, l.Bind(qd1, addr))

	err = l.Bind(qd2, addr)
	require.Error(t, err)
	require.True(t, IsErrno(err, syscall.EADDRINUSE))
}

func TestSocketRejectsAFInet6(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	_, err := l.Socket(AFInet6, SockStream, 0)
	require.Error(t, err)
	require.True(t, IsErrno(err, syscall.ENOTSUP))
}

func TestSocketAllowsDgramAndAllocatesUDPQueue(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	qd, err := l.Socket(AFInet, SockDgram, 0)
	require.NoError(t, err)
	q, ok := l.queues.Get(qd)
	require.True(t, ok)
	require.Equal(t, ioqueue.QueueKindUDPSocket, q.Kind())
}

func TestBindRejectsPortZero(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	qd, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	err = l.Bind(qd, SockAddr{IP: [4]byte{127, 0, 0, 1}, Port: 0})
	require.Error(t, err)
	require.True(t, IsErrno(err, syscall.ENOTSUP))
}

func TestBindAddressIsReleasedOnClose(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	addr := SockAddr{IP: [4]byte{10, 0, 0, 1}, Port: 80}

	qd1, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	require.NoError(t, l.Bind(qd1, addr))
	require.NoError(t, l.Close(qd1))

	qd2, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	require.NoError(t, l.Bind(qd2, addr), "address must be rebindable once the original queue is closed")
}

func TestBindThenListenThenAcceptCompletesHandshake(t *testing.T) {
	tr := NewMockTransport()
	localMac := wire.MacAddress{1, 1, 1, 1, 1, 1}
	remoteMac := wire.MacAddress{2, 2, 2, 2, 2, 2}
	localIP := [4]byte{10, 0, 0, 1}
	remoteIP := [4]byte{10, 0, 0, 2}
	tr.Learn(remoteIP, remoteMac)

	l := NewLibOS(localMac, tr, WithNonce(7))

	qd, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	require.NoError(t, l.Bind(qd, SockAddr{IP: localIP, Port: 80}))
	require.NoError(t, l.Listen(qd, 4))

	qt, err := l.Accept(qd)
	require.NoError(t, err)

	synHdr := wire.NewTcpHeader(40000, 80)
	synHdr.SetSYN(true)
	synHdr.SeqNum = 1000
	synHdr.WindowSize = 0xFFFF
	ipHdr := wire.NewIpv4Header(remoteIP, localIP)
	require.NoError(t, tr.DeliverHeader(ipHdr, synHdr))

	require.Eventually(t, func() bool {
		require.NoError(t, l.Poll())
		counts := tr.CallCounts()
		return counts["transmit"] >= 1
	}, time.Second, time.Millisecond)

	synAck := tr.TransmittedSegments()[0]
	require.True(t, synAck.TCPHeader.SYN())
	require.True(t, synAck.TCPHeader.ACK())

	ack := wire.NewTcpHeader(40000, 80)
	ack.SetACK(true)
	ack.SeqNum = 1001
	ack.AckNum = synAck.TCPHeader.SeqNum + 1
	require.NoError(t, tr.DeliverHeader(ipHdr, ack))
	require.NoError(t, l.Poll())

	completion, err := l.Wait(qt, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, OpcodeAccept, completion.Opcode)

	childQueue, ok := l.queues.Get(completion.QD)
	require.True(t, ok)
	st := childQueue.Handle().(*socketState)
	require.NotNil(t, st.accepted)
	require.Equal(t, uint16(40000), st.accepted.Remote.Port)
}

func TestAcceptFailsWhenSocketNotListening(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	qd, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	_, err = l.Accept(qd)
	require.Error(t, err)
}

func TestConnectIsNotSupported(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	qd, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)
	qt, err := l.Connect(qd, SockAddr{})
	require.NoError(t, err)

	completion, err := l.Wait(qt, time.Second)
	require.NoError(t, err)
	require.Equal(t, OpcodeFailed, completion.Opcode)
	require.Equal(t, -int(syscall.ENOTSUP), completion.ReturnCode)
}

func TestMemoryRingPushPopRoundTrip(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, nil)

	pushQD, err := l.OpenMemoryRing("facade-ring", catmem.SidePush, true)
	require.NoError(t, err)
	popQD, err := l.OpenMemoryRing("facade-ring", catmem.SidePop, false)
	require.NoError(t, err)

	sga, err := l.SgaAlloc(5)
	require.NoError(t, err)
	copy(sga.Segments[0].Buf.Bytes(), []byte("hello"))

	pushQT, err := l.Push(pushQD, sga)
	require.NoError(t, err)
	_, err = l.Wait(pushQT, time.Second)
	require.NoError(t, err)

	popQT, err := l.Pop(popQD, 5)
	require.NoError(t, err)
	completion, err := l.Wait(popQT, time.Second)
	require.NoError(t, err)
	require.Equal(t, OpcodePop, completion.Opcode)
	require.Equal(t, []byte("hello"), completion.Sga.Segments[0].Buf.Bytes())

	require.NoError(t, l.Close(pushQD))
	require.NoError(t, l.Close(popQD))
}

func TestWaitAnyReturnsFirstCompletion(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, nil)

	pushQD, err := l.OpenMemoryRing("facade-waitany", catmem.SidePush, true)
	require.NoError(t, err)

	sga, err := l.SgaAlloc(1)
	require.NoError(t, err)
	sga.Segments[0].Buf.Bytes()[0] = 'x'

	fastQT, err := l.Push(pushQD, sga)
	require.NoError(t, err)

	completion, err := l.WaitAny([]QToken{fastQT}, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, fastQT, completion.QT)
}

func TestSgaAllocFreeRejectsZeroSize(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, nil)
	_, err := l.SgaAlloc(0)
	require.Error(t, err)
}

func TestPushOnNonRingQueueIsNotSupported(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, NewMockTransport())
	qd, err := l.Socket(AFInet, SockStream, 0)
	require.NoError(t, err)

	sga, err := l.SgaAlloc(4)
	require.NoError(t, err)
	_, err = l.Push(qd, sga)
	require.Error(t, err)
}

func TestPollWithNilTransportIsANoop(t *testing.T) {
	l := NewLibOS(wire.MacAddress{}, nil)
	require.NoError(t, l.Poll())
}
