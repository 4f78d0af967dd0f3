//go:build linux && giouring

package transport

import (
	"fmt"
	"sync"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// IoUringTransport drives readiness for a raw socket through an io_uring
// instance: it never reimplements TCP framing or a device driver (out of
// scope), it only proves the Transport boundary is real by
// using giouring to learn when the fd has data instead of blocking in a
// plain read(2) loop.
type IoUringTransport struct {
	mu  sync.Mutex
	fd  int
	ring *giouring.Ring
	arp  map[[4]byte]wire.MacAddress
	recvBuf [65536]byte
}

// NewIoUringTransport opens an AF_PACKET raw socket and registers it with a
// freshly created io_uring instance sized for a handful of inflight polls.
func NewIoUringTransport() (*IoUringTransport, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("transport: open raw socket: %w", err)
	}
	ring, err := giouring.CreateRing(64)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: create io_uring: %w", err)
	}
	return &IoUringTransport{fd: fd, ring: ring, arp: make(map[[4]byte]wire.MacAddress)}, nil
}

func (t *IoUringTransport) Learn(ip [4]byte, mac wire.MacAddress) {
	t.mu.Lock()
	t.arp[ip] = mac
	t.mu.Unlock()
}

func (t *IoUringTransport) ArpQuery(ip [4]byte) (wire.MacAddress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mac, ok := t.arp[ip]
	if !ok {
		return wire.MacAddress{}, fmt.Errorf("transport: no ARP entry for %v", ip)
	}
	return mac, nil
}

func (t *IoUringTransport) Transmit(seg *tcp.Segment) error {
	payload, err := seg.TCPHeader.Marshal()
	if err != nil {
		return err
	}
	_, err = unix.Write(t.fd, payload)
	return err
}

// Poll submits a read against the raw socket through io_uring and, if the
// completion queue reports data ready, returns it as one InboundSegment.
// TCP-header parsing is left to the caller (internal/wire.UnmarshalTcpHeader).
func (t *IoUringTransport) Poll() ([]InboundSegment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sqe := t.ring.GetSQE()
	if sqe == nil {
		return nil, fmt.Errorf("transport: io_uring submission queue full")
	}
	sqe.PrepareRead(int32(t.fd), t.recvBuf[:], 0)

	if _, err := t.ring.SubmitAndWait(1); err != nil {
		return nil, fmt.Errorf("transport: io_uring submit: %w", err)
	}
	cqe, err := t.ring.PeekCQE()
	if err != nil {
		return nil, nil
	}
	n := int(cqe.Res)
	t.ring.CQESeen(cqe)
	if n <= 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	copy(payload, t.recvBuf[:n])
	return []InboundSegment{{Payload: payload}}, nil
}

func (t *IoUringTransport) Close() error {
	t.ring.QueueExit()
	return unix.Close(t.fd)
}

func htons(v uint32) uint16 {
	return uint16(v<<8) | uint16(v>>8)
}
