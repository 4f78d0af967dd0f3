// Package tcp implements the TCP passive-open state machine: admitting an
// inbound SYN against a listening backlog, negotiating options, retrying
// the SYN+ACK under a background coroutine, and handing a completed
// handshake to the accept() backlog. The full TCP data path (congestion
// control, retransmission, reassembly) is out of scope; this package stops
// at a negotiated EstablishedConnection.
package tcp

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	"github.com/HelloKayT/demikernel-go/internal/config"
	"github.com/HelloKayT/demikernel-go/internal/logging"
	"github.com/HelloKayT/demikernel-go/internal/scheduler"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// inflightAccept is the state kept for a SYN that has been answered with a
// SYN+ACK but not yet finally ACKed.
type inflightAccept struct {
	localISN          uint32
	remoteISN         uint32
	headerWindowSize  uint16
	remoteWindowScale *uint8
	mss               uint16
	handle            *scheduler.TaskHandle
}

// PassiveSocket is a bound, listening TCP endpoint: it admits SYNs up to
// max_backlog, negotiates each handshake, and exposes completed connections
// through PollAccept.
type PassiveSocket struct {
	mu       sync.Mutex
	inflight map[Endpoint]*inflightAccept
	ready    *readySockets

	local      Endpoint
	localLink  wire.MacAddress
	maxBacklog int
	isn        *IsnGenerator
	tcpConfig  config.TcpConfig
	sched      *scheduler.Scheduler
	clock      scheduler.Clock
	transport  Transmitter
	arp        ArpResolver
	logger     *logging.Logger
}

// NewPassiveSocket builds a listener bound to local, backed by the given
// scheduler/clock/transport/arp collaborators. nonce seeds ISN generation.
func NewPassiveSocket(
	local Endpoint,
	localLink wire.MacAddress,
	cfg config.TcpConfig,
	sched *scheduler.Scheduler,
	clock scheduler.Clock,
	transport Transmitter,
	arp ArpResolver,
	nonce uint32,
	logger *logging.Logger,
) *PassiveSocket {
	return &PassiveSocket{
		inflight:   make(map[Endpoint]*inflightAccept),
		ready:      newReadySockets(),
		local:      local,
		localLink:  localLink,
		maxBacklog: cfg.GetMaxBacklog(),
		isn:        NewIsnGenerator(nonce),
		tcpConfig:  cfg,
		sched:      sched,
		clock:      clock,
		transport:  transport,
		arp:        arp,
		logger:     logger,
	}
}

// Endpoint returns the address this socket is bound to.
func (ps *PassiveSocket) Endpoint() Endpoint { return ps.local }

// PollAccept returns the next completed (or permanently failed) handshake,
// if one is ready.
func (ps *PassiveSocket) PollAccept() (*EstablishedConnection, error, bool) {
	res, ok := ps.ready.pop()
	if !ok {
		return nil, nil, false
	}
	return res.conn, res.err, true
}

// Receive processes one inbound TCP segment addressed to this listener: it
// either advances an inflight handshake to completion, admits a new SYN, or
// rejects the segment.
func (ps *PassiveSocket) Receive(ipHdr *wire.Ipv4Header, hdr *wire.TcpHeader) error {
	remote := NewEndpoint(ipHdr.SrcAddr, hdr.SrcPort)

	if ps.ready.hasEndpoint(remote) {
		// A packet for a connection accepted but not yet drained out of the
		// ready queue. Nothing to do until the caller accepts it.
		return nil
	}

	ps.mu.Lock()
	accept, inflight := ps.inflight[remote]
	inflightLen := len(ps.inflight)
	ps.mu.Unlock()

	if inflight {
		return ps.receiveAck(remote, accept, hdr)
	}
	return ps.receiveSyn(remote, inflightLen, ipHdr, hdr)
}

func (ps *PassiveSocket) receiveAck(remote Endpoint, accept *inflightAccept, hdr *wire.TcpHeader) error {
	if !hdr.ACK() {
		return fmt.Errorf("tcp: expecting ACK: %w", syscall.EBADMSG)
	}
	if ps.logger != nil {
		ps.logger.Debug("received ACK", "remote", remote.String())
	}
	if hdr.AckNum != accept.localISN+1 {
		return fmt.Errorf("tcp: invalid SYN+ACK seq num: %w", syscall.EBADMSG)
	}

	var localWindowScale, remoteWindowScale uint32
	if accept.remoteWindowScale != nil {
		localWindowScale = uint32(ps.tcpConfig.GetWindowScale())
		remoteWindowScale = uint32(*accept.remoteWindowScale)
	}
	remoteWindowSize := uint32(accept.headerWindowSize) << remoteWindowScale
	localWindowSize := uint32(ps.tcpConfig.GetReceiveWindowSize()) << localWindowScale

	if ps.logger != nil {
		ps.logger.Info("window sizes negotiated", "local", localWindowSize, "remote", remoteWindowSize)
	}

	ps.mu.Lock()
	delete(ps.inflight, remote)
	ps.mu.Unlock()
	accept.handle.Deschedule()

	conn := &EstablishedConnection{
		Local:             ps.local,
		Remote:            remote,
		LocalISN:          accept.localISN + 1,
		RemoteISN:         accept.remoteISN + 1,
		LocalWindowSize:   localWindowSize,
		RemoteWindowSize:  remoteWindowSize,
		LocalWindowScale:  uint8(localWindowScale),
		RemoteWindowScale: uint8(remoteWindowScale),
		MSS:               accept.mss,
	}
	ps.ready.pushOK(conn)
	return nil
}

func (ps *PassiveSocket) receiveSyn(remote Endpoint, inflightLen int, ipHdr *wire.Ipv4Header, hdr *wire.TcpHeader) error {
	if !hdr.SYN() || hdr.ACK() || hdr.RST() {
		return fmt.Errorf("tcp: invalid flags: %w", syscall.EBADMSG)
	}
	if ps.logger != nil {
		ps.logger.Debug("received SYN", "remote", remote.String())
	}

	if inflightLen+ps.ready.len() >= ps.maxBacklog {
		err := fmt.Errorf("tcp: backlog full (inflight=%d ready=%d backlog=%d): %w",
			inflightLen, ps.ready.len(), ps.maxBacklog, syscall.ECONNREFUSED)
		if ps.logger != nil {
			ps.logger.Error(err.Error())
		}
		return err
	}

	localISN := ps.isn.Generate(ps.local, remote)
	remoteISN := hdr.SeqNum

	var remoteWindowScale *uint8
	mss := uint16(536) // fallback MSS; overridden below if advertised
	for _, opt := range hdr.Options {
		switch opt.Kind {
		case wire.OptionWindowScale:
			w := opt.WindowScale
			remoteWindowScale = &w
			if ps.logger != nil {
				ps.logger.Info("received window scale", "value", w)
			}
		case wire.OptionMaximumSegmentSize:
			mss = opt.MSS
			if ps.logger != nil {
				ps.logger.Info("received advertised MSS", "value", mss)
			}
		}
	}

	handle := ps.sched.Insert("tcp::passive_open::background", ps.background(remote, remoteISN, localISN))

	ps.mu.Lock()
	ps.inflight[remote] = &inflightAccept{
		localISN:          localISN,
		remoteISN:         remoteISN,
		headerWindowSize:  hdr.WindowSize,
		remoteWindowScale: remoteWindowScale,
		mss:               mss,
		handle:            handle,
	}
	ps.mu.Unlock()
	return nil
}

// background retries the SYN+ACK up to handshake_retries times, spaced by
// handshake_timeout, giving up and pushing an ETIMEDOUT error onto the ready
// queue if none is ever ACKed.
func (ps *PassiveSocket) background(remote Endpoint, remoteISN, localISN uint32) scheduler.TaskFunc {
	return func(ctx context.Context, y *scheduler.Yielder) (any, error) {
		retries := ps.tcpConfig.GetHandshakeRetries()
		timeout := ps.tcpConfig.GetHandshakeTimeout()

		for i := 0; i < retries; i++ {
			remoteLink, err := ps.arp.Query(remote.IP)
			if err != nil {
				if ps.logger != nil {
					ps.logger.Warn("ARP query failed", "remote", remote.String(), "err", err)
				}
				continue
			}

			tcpHdr := wire.NewTcpHeader(ps.local.Port, remote.Port)
			tcpHdr.SetSYN(true)
			tcpHdr.SetACK(true)
			tcpHdr.SeqNum = localISN
			tcpHdr.AckNum = remoteISN + 1
			tcpHdr.WindowSize = ps.tcpConfig.GetReceiveWindowSize()
			tcpHdr.PushOption(wire.MSSOption(ps.tcpConfig.GetAdvertisedMSS()))
			tcpHdr.PushOption(wire.WindowScaleOption(ps.tcpConfig.GetWindowScale()))

			seg := &Segment{
				SrcLinkAddr: ps.localLink,
				DstLinkAddr: remoteLink,
				IPHeader:    wire.NewIpv4Header(ps.local.IP, remote.IP),
				TCPHeader:   tcpHdr,
			}
			if err := ps.transport.Transmit(seg); err != nil && ps.logger != nil {
				ps.logger.Warn("SYN+ACK transmit failed", "remote", remote.String(), "err", err)
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ps.clock.After(timeout):
			}
		}

		ps.ready.pushErr(fmt.Errorf("tcp: handshake timeout: %w", syscall.ETIMEDOUT))
		return nil, nil
	}
}
