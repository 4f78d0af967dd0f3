// Package demikernel is the public façade: a POSIX-shaped asynchronous
// socket API dispatching to the TCP passive-open state machine and the
// catmem shared-memory ring, backed by the cooperative scheduler. Control
// calls (socket/bind/listen/close) run synchronously; data calls
// (accept/connect/push/pop/async_close) spawn a coroutine and return its
// task id as a queue token. pushto fails ENOTSUP without spawning one.
package demikernel

import (
	"context"
	"sync"
	"time"

	"github.com/HelloKayT/demikernel-go/internal/buffer"
	"github.com/HelloKayT/demikernel-go/internal/catmem"
	"github.com/HelloKayT/demikernel-go/internal/config"
	"github.com/HelloKayT/demikernel-go/internal/ioqueue"
	"github.com/HelloKayT/demikernel-go/internal/logging"
	"github.com/HelloKayT/demikernel-go/internal/scheduler"
	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/transport"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// QToken is the opaque identifier for an in-flight operation — the
// scheduler task id doubling as the C ABI's queue token.
type QToken = uint64

// SockAddr is an IPv4 socket address, the only address family this core
// supports.
type SockAddr struct {
	IP   [4]byte
	Port uint16
}

// Opcode tags what kind of operation a Completion reports, matching the
// C ABI enumeration.
type Opcode int

const (
	OpcodeConnect Opcode = iota
	OpcodeAccept
	OpcodePush
	OpcodePop
	OpcodeClose
	OpcodeFailed
)

// Completion is the C-ABI-shaped result of a finished operation: opcode,
// queue descriptor, queue token, a return code (0 or -errno), and a
// payload that is populated only for the variants that carry one.
type Completion struct {
	Opcode     Opcode
	QD         ioqueue.QDesc
	QT         QToken
	ReturnCode int
	Addr       *SockAddr
	Sga        *buffer.Sgarray
}

// socketState is what a TCP/UDP queue's ioqueue.Queue.Handle() holds
// across its socket()/bind()/listen()/accept() lifecycle.
type socketState struct {
	mu       sync.Mutex
	bound    *SockAddr
	passive  *tcp.PassiveSocket // set once listen() is called
	accepted *tcp.EstablishedConnection
}

// LibOS is the entry point: one per process (or per test), owning the
// queue table, scheduler, and the collaborators every queue needs.
type LibOS struct {
	mu        sync.Mutex
	queues    *ioqueue.IoQueueTable
	sched     *scheduler.Scheduler
	clock     scheduler.Clock
	transport transport.Transport
	tcpConfig config.TcpConfig
	localLink wire.MacAddress
	nonce     uint32
	logger    *logging.Logger

	boundAddrs map[tcp.Endpoint]ioqueue.QDesc
	listeners  map[tcp.Endpoint]*tcp.PassiveSocket

	taskQueues map[QToken]ioqueue.QDesc
}

// Option configures a LibOS at construction.
type Option func(*LibOS)

func WithTcpConfig(cfg config.TcpConfig) Option { return func(l *LibOS) { l.tcpConfig = cfg.Normalize() } }
func WithLogger(logger *logging.Logger) Option  { return func(l *LibOS) { l.logger = logger } }
func WithClock(c scheduler.Clock) Option        { return func(l *LibOS) { l.clock = c } }
func WithNonce(n uint32) Option                 { return func(l *LibOS) { l.nonce = n } }

// NewLibOS builds a LibOS bound to the given link address and transport.
func NewLibOS(localLink wire.MacAddress, tr transport.Transport, opts ...Option) *LibOS {
	l := &LibOS{
		queues:     ioqueue.NewIoQueueTable(),
		sched:      scheduler.New(0),
		clock:      scheduler.SystemClock{},
		transport:  tr,
		tcpConfig:  config.DefaultTcpConfig().Normalize(),
		localLink:  localLink,
		logger:     logging.Default(),
		boundAddrs: make(map[tcp.Endpoint]ioqueue.QDesc),
		listeners:  make(map[tcp.Endpoint]*tcp.PassiveSocket),
		taskQueues: make(map[QToken]ioqueue.QDesc),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Domain is a socket address family, matching the POSIX AF_* constants this
// core recognizes.
type Domain int

const (
	AFInet Domain = iota
	AFInet6
)

// SockType is a socket transport type, matching the POSIX SOCK_* constants
// this core recognizes.
type SockType int

const (
	SockStream SockType = iota
	SockDgram
)

// Socket allocates a new, unbound queue of the given domain/type. Only
// AF_INET sockets are supported; AF_INET6 fails ENOTSUP. SOCK_STREAM yields
// a TCP queue, SOCK_DGRAM a UDP queue.
func (l *LibOS) Socket(domain Domain, typ SockType, protocol int) (ioqueue.QDesc, error) {
	if domain != AFInet {
		return 0, ErrNotSupported("socket", "only AF_INET is supported")
	}
	switch typ {
	case SockStream:
		return l.queues.Alloc(ioqueue.QueueKindTCPSocket, &socketState{}), nil
	case SockDgram:
		return l.queues.Alloc(ioqueue.QueueKindUDPSocket, &socketState{}), nil
	default:
		return 0, ErrNotSupported("socket", "only SOCK_STREAM and SOCK_DGRAM are supported")
	}
}

// Bind assigns a local address to qd, rejecting a second bind to an
// address already in use.
func (l *LibOS) Bind(qd ioqueue.QDesc, addr SockAddr) error {
	q, ok := l.queues.Get(qd)
	if !ok {
		return ErrBadQueueDescriptor("bind")
	}
	st, ok := q.Handle().(*socketState)
	if !ok {
		return ErrInvalid("bind", "qd is not a socket queue")
	}
	if addr.Port == 0 {
		return ErrNotSupported("bind", "port 0 (ephemeral port assignment) is not supported")
	}

	ep := tcp.NewEndpoint(addr.IP, addr.Port)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.boundAddrs[ep]; taken {
		return ErrAddrInUse("bind", ep.String())
	}

	st.mu.Lock()
	if st.bound != nil {
		st.mu.Unlock()
		return ErrInvalid("bind", "socket already bound")
	}
	st.bound = &addr
	st.mu.Unlock()

	l.boundAddrs[ep] = qd
	return nil
}

// Listen turns a bound socket into a passive listener admitting up to
// backlog half-open plus not-yet-accepted connections. A backlog above
// SOMAXCONN is truncated to it; one below 1 is raised to 1.
func (l *LibOS) Listen(qd ioqueue.QDesc, backlog int) error {
	q, ok := l.queues.Get(qd)
	if !ok {
		return ErrBadQueueDescriptor("listen")
	}
	st, ok := q.Handle().(*socketState)
	if !ok {
		return ErrInvalid("listen", "qd is not a socket queue")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.bound == nil {
		return ErrInvalid("listen", "socket not bound")
	}
	if st.passive != nil {
		return ErrInvalid("listen", "socket already listening")
	}

	cfg := l.tcpConfig
	cfg.MaxBacklog = backlog
	cfg = cfg.Normalize()

	local := tcp.NewEndpoint(st.bound.IP, st.bound.Port)
	ps := tcp.NewPassiveSocket(local, l.localLink, cfg, l.sched, l.clock, l.transport, transport.AsArpResolver(l.transport), l.nonce, l.logger)
	st.passive = ps

	l.mu.Lock()
	l.listeners[local] = ps
	l.mu.Unlock()
	return nil
}

// Accept spawns a coroutine that waits for the next completed handshake on
// qd's backlog, returning its task id as a token.
func (l *LibOS) Accept(qd ioqueue.QDesc) (QToken, error) {
	q, ok := l.queues.Get(qd)
	if !ok {
		return 0, ErrBadQueueDescriptor("accept")
	}
	st, ok := q.Handle().(*socketState)
	if !ok {
		return 0, ErrInvalid("accept", "qd is not a socket queue")
	}
	st.mu.Lock()
	ps := st.passive
	st.mu.Unlock()
	if ps == nil {
		return 0, ErrInvalid("accept", "socket is not listening")
	}

	handle := l.sched.Insert("facade::accept", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		for {
			conn, err, ready := ps.PollAccept()
			if ready {
				if err != nil {
					return nil, err
				}
				childQD := l.queues.Alloc(ioqueue.QueueKindTCPSocket, &socketState{accepted: conn})
				return childQD, nil
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-l.clock.After(1 * time.Millisecond):
			}
		}
	})
	if handle == nil {
		return 0, ErrAgain("accept", "scheduler at capacity")
	}
	l.trackInflight(qd, q, handle.ID())
	return handle.ID(), nil
}

// trackInflight bumps qd's inflight counter and remembers which queue
// owns qt, so Wait/WaitAny can release it once the task resolves.
func (l *LibOS) trackInflight(qd ioqueue.QDesc, q *ioqueue.Queue, qt QToken) {
	q.IncInflight()
	l.mu.Lock()
	l.taskQueues[qt] = qd
	l.mu.Unlock()
}

// untrackInflight releases the bookkeeping trackInflight recorded, if any.
func (l *LibOS) untrackInflight(qt QToken) {
	l.mu.Lock()
	qd, ok := l.taskQueues[qt]
	if ok {
		delete(l.taskQueues, qt)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	if q, ok := l.queues.Get(qd); ok {
		q.DecInflight()
	}
}

// Connect is part of the C ABI surface but active-open is not part of this
// core's scope (only PassiveSocket is specified); it always fails ENOTSUP.
func (l *LibOS) Connect(qd ioqueue.QDesc, remote SockAddr) (QToken, error) {
	if _, ok := l.queues.Get(qd); !ok {
		return 0, ErrBadQueueDescriptor("connect")
	}
	handle := l.sched.Insert("facade::connect", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		return nil, ErrNotSupported("connect", "active open is not implemented")
	})
	if handle == nil {
		return 0, ErrAgain("connect", "scheduler at capacity")
	}
	return handle.ID(), nil
}

// Close synchronously tears a queue down. For a memory-ring queue it
// commits EOF and cancels pending ops; for a socket queue it just frees the
// descriptor, logging a warning if operations are still inflight.
func (l *LibOS) Close(qd ioqueue.QDesc) error {
	q, ok := l.queues.Get(qd)
	if !ok {
		return ErrBadQueueDescriptor("close")
	}
	if ep, ok := q.Handle().(*catmem.Endpoint); ok {
		if err := ep.Close(); err != nil {
			return WrapFail("close", err)
		}
	}
	if st, ok := q.Handle().(*socketState); ok {
		st.mu.Lock()
		bound := st.bound
		st.mu.Unlock()
		if bound != nil {
			tcpEP := tcp.NewEndpoint(bound.IP, bound.Port)
			l.mu.Lock()
			if l.boundAddrs[tcpEP] == qd {
				delete(l.boundAddrs, tcpEP)
			}
			delete(l.listeners, tcpEP)
			l.mu.Unlock()
		}
	}
	if q.InflightCount() > 0 && l.logger != nil {
		l.logger.WithOp("close").Warn("queue has operations still in flight", "qd", qd, "inflight", q.InflightCount())
	}
	l.queues.Free(qd)
	return nil
}

// AsyncClose spawns a coroutine tearing a queue down asynchronously. Only
// memory-ring queues have a real async teardown protocol in this core; a
// socket queue's AsyncClose degenerates to a Close that completes
// immediately.
func (l *LibOS) AsyncClose(qd ioqueue.QDesc) (QToken, error) {
	q, ok := l.queues.Get(qd)
	if !ok {
		return 0, ErrBadQueueDescriptor("async_close")
	}
	if ep, ok := q.Handle().(*catmem.Endpoint); ok {
		handle, err := ep.AsyncClose()
		if err != nil {
			return 0, WrapFail("async_close", err)
		}
		return handle.ID(), nil
	}
	handle := l.sched.Insert("facade::async_close", func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		return nil, l.Close(qd)
	})
	if handle == nil {
		return 0, ErrAgain("async_close", "scheduler at capacity")
	}
	return handle.ID(), nil
}

// Push spawns a coroutine writing sga's bytes to qd, valid only for a
// memory-ring push endpoint in this core (full TCP/UDP data paths are out
// of scope).
func (l *LibOS) Push(qd ioqueue.QDesc, sga *buffer.Sgarray) (QToken, error) {
	q, ok := l.queues.Get(qd)
	if !ok {
		return 0, ErrBadQueueDescriptor("push")
	}
	ep, ok := q.Handle().(*catmem.Endpoint)
	if !ok {
		return 0, ErrNotSupported("push", "push is only implemented for memory-ring queues")
	}
	if sga.NumSegs != 1 {
		return 0, ErrInvalid("push", "multi-segment scatter-gather arrays are not supported")
	}
	handle, err := ep.Push(sga.Segments[0].Buf.Bytes())
	if err != nil {
		return 0, WrapFail("push", err)
	}
	l.trackInflight(qd, q, handle.ID())
	return handle.ID(), nil
}

// PushTo is the datagram variant; UDP formatting is out of scope for this
// core, so it always fails ENOTSUP.
func (l *LibOS) PushTo(qd ioqueue.QDesc, sga *buffer.Sgarray, addr SockAddr) (QToken, error) {
	if _, ok := l.queues.Get(qd); !ok {
		return 0, ErrBadQueueDescriptor("pushto")
	}
	return 0, ErrNotSupported("pushto", "UDP datagram formatting is not implemented")
}

// Pop spawns a coroutine reading up to size bytes from qd, valid only for a
// memory-ring pop endpoint in this core.
func (l *LibOS) Pop(qd ioqueue.QDesc, size int) (QToken, error) {
	q, ok := l.queues.Get(qd)
	if !ok {
		return 0, ErrBadQueueDescriptor("pop")
	}
	ep, ok := q.Handle().(*catmem.Endpoint)
	if !ok {
		return 0, ErrNotSupported("pop", "pop is only implemented for memory-ring queues")
	}
	handle, err := ep.Pop(size)
	if err != nil {
		return 0, WrapFail("pop", err)
	}
	l.trackInflight(qd, q, handle.ID())
	return handle.ID(), nil
}

// Wait blocks until qt completes (or timeout elapses), formatting its
// result as a C-ABI completion descriptor.
func (l *LibOS) Wait(qt QToken, timeout time.Duration) (*Completion, error) {
	handle, ok := l.sched.FromTaskID(qt)
	if !ok {
		return nil, ErrInvalid("wait", "unknown queue token")
	}
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err, ok := handle.Wait(ctx)
	if !ok {
		return nil, ErrTimedOut("wait", "operation did not complete in time")
	}
	l.sched.Remove(handle)
	l.untrackInflight(qt)
	return l.toCompletion(handle, result, err), nil
}

// WaitAny blocks until the first of qts completes.
func (l *LibOS) WaitAny(qts []QToken, timeout time.Duration) (*Completion, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		handle *scheduler.TaskHandle
		result any
		err    error
	}
	done := make(chan outcome, len(qts))
	for _, qt := range qts {
		handle, ok := l.sched.FromTaskID(qt)
		if !ok {
			continue
		}
		go func(h *scheduler.TaskHandle) {
			result, err, ok := h.Wait(ctx)
			if ok {
				done <- outcome{handle: h, result: result, err: err}
			}
		}(handle)
	}

	select {
	case o := <-done:
		l.sched.Remove(o.handle)
		l.untrackInflight(o.handle.ID())
		return l.toCompletion(o.handle, o.result, o.err), nil
	case <-ctx.Done():
		return nil, ErrTimedOut("wait_any", "no operation completed in time")
	}
}

// Poll drives the scheduler one round and dispatches any inbound network
// segments to the listener they address.
func (l *LibOS) Poll() error {
	l.sched.Poll()
	if l.transport == nil {
		return nil
	}
	segments, err := l.transport.Poll()
	if err != nil {
		return WrapFail("poll", err)
	}
	pollLog := l.logger
	if pollLog != nil {
		pollLog = pollLog.WithOp("poll")
	}
	for _, seg := range segments {
		hdr, err := wire.UnmarshalTcpHeader(seg.Payload)
		if err != nil {
			if pollLog != nil {
				pollLog.Warn("dropping malformed segment", "err", err)
			}
			continue
		}
		local := tcp.NewEndpoint(seg.IPHeader.DstAddr, hdr.DstPort)
		l.mu.Lock()
		ps, ok := l.listeners[local]
		l.mu.Unlock()
		if !ok {
			continue
		}
		if err := ps.Receive(seg.IPHeader, hdr); err != nil && pollLog != nil {
			pollLog.Warn("receive failed", "local", local.String(), "err", err)
		}
	}
	return nil
}

func (l *LibOS) toCompletion(handle *scheduler.TaskHandle, result any, err error) *Completion {
	c := &Completion{QT: handle.ID()}
	if err != nil {
		c.Opcode = OpcodeFailed
		if f := WrapFail(handle.Name(), err); f != nil {
			c.ReturnCode = -int(f.Errno)
		}
		return c
	}
	switch v := result.(type) {
	case ioqueue.QDesc:
		c.Opcode = OpcodeAccept
		c.QD = v
	case *catmem.PopResult:
		c.Opcode = OpcodePop
		sga := buffer.IntoSga(buffer.FromBytes(v.Data))
		c.Sga = sga
	default:
		switch handle.Name() {
		case "catmem::do_async_close", "facade::async_close":
			c.Opcode = OpcodeClose
		default:
			c.Opcode = OpcodePush
		}
	}
	return c
}

// SgaAlloc allocates a buffer of size and wraps it as a one-segment
// scatter-gather array.
func (l *LibOS) SgaAlloc(size uint32) (*buffer.Sgarray, error) {
	sga, err := buffer.Alloc(size)
	if err != nil {
		return nil, ErrInvalid("sgaalloc", err.Error())
	}
	return sga, nil
}

// SgaFree reclaims a scatter-gather array's underlying buffer.
func (l *LibOS) SgaFree(sga *buffer.Sgarray) error {
	if err := buffer.Free(sga); err != nil {
		return ErrInvalid("sgafree", err.Error())
	}
	return nil
}

// OpenMemoryRing creates (create=true) or attaches to (create=false) a
// named catmem ring side and registers it as a queue.
func (l *LibOS) OpenMemoryRing(name string, side catmem.Side, create bool) (ioqueue.QDesc, error) {
	var ep *catmem.Endpoint
	var err error
	if create {
		ep, err = catmem.Create(name, side, l.sched, l.clock)
	} else {
		ep, err = catmem.Open(name, side, l.sched, l.clock)
	}
	if err != nil {
		return 0, ErrInvalid("open_memory_ring", err.Error())
	}
	return l.queues.Alloc(ioqueue.QueueKindMemoryRing, ep), nil
}
