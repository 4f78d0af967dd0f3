//go:build linux

package transport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// RawSocketTransport is the simplest real Transport: an AF_PACKET/SOCK_RAW
// socket. Transmit writes each segment's serialized TCP header as-is, with
// no Ethernet or IPv4 header added. ArpQuery answers from a static table
// filled by Learn; no ARP protocol is spoken.
type RawSocketTransport struct {
	mu  sync.Mutex
	fd  int
	arp map[[4]byte]wire.MacAddress
}

// NewRawSocketTransport opens a raw packet socket bound to ifaceIndex.
func NewRawSocketTransport(ifaceIndex int) (*RawSocketTransport, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK, int(htons16(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("transport: open raw socket: %w", err)
	}
	addr := &unix.SockaddrLinklayer{Protocol: htons16(unix.ETH_P_ALL), Ifindex: ifaceIndex}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: bind raw socket: %w", err)
	}
	return &RawSocketTransport{fd: fd, arp: make(map[[4]byte]wire.MacAddress)}, nil
}

func (t *RawSocketTransport) Learn(ip [4]byte, mac wire.MacAddress) {
	t.mu.Lock()
	t.arp[ip] = mac
	t.mu.Unlock()
}

func (t *RawSocketTransport) ArpQuery(ip [4]byte) (wire.MacAddress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mac, ok := t.arp[ip]
	if !ok {
		return wire.MacAddress{}, fmt.Errorf("transport: no ARP entry for %v", ip)
	}
	return mac, nil
}

func (t *RawSocketTransport) Transmit(seg *tcp.Segment) error {
	payload, err := seg.TCPHeader.Marshal()
	if err != nil {
		return err
	}
	_, err = unix.Write(t.fd, payload)
	return err
}

// Poll does a single non-blocking read; a real device-driver-grade poll
// loop (batching, readiness notification) is out of scope here.
func (t *RawSocketTransport) Poll() ([]InboundSegment, error) {
	buf := make([]byte, 65536)
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	return []InboundSegment{{Payload: buf[:n]}}, nil
}

func (t *RawSocketTransport) Close() error {
	return unix.Close(t.fd)
}

func htons16(v int) uint16 {
	return uint16(v<<8) | uint16(v>>8)
}
