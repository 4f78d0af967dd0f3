package transport

import (
	"fmt"
	"sync"

	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// Loopback is an in-memory Transport: every transmitted segment is
// delivered back to the same process's Poll() queue, and ArpQuery resolves
// against a small static table populated with Learn. Used by every test and
// the cmd/libos-echo demo so the libOS core can run without a NIC.
type Loopback struct {
	mu    sync.Mutex
	arp   map[[4]byte]wire.MacAddress
	inbox []InboundSegment
}

func NewLoopback() *Loopback {
	return &Loopback{arp: make(map[[4]byte]wire.MacAddress)}
}

// Learn records a static IP-to-link-address mapping, standing in for the
// ARP table lookup policy this core excludes.
func (l *Loopback) Learn(ip [4]byte, mac wire.MacAddress) {
	l.mu.Lock()
	l.arp[ip] = mac
	l.mu.Unlock()
}

func (l *Loopback) ArpQuery(ip [4]byte) (wire.MacAddress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mac, ok := l.arp[ip]
	if !ok {
		return wire.MacAddress{}, fmt.Errorf("transport: no ARP entry for %v", ip)
	}
	return mac, nil
}

func (l *Loopback) Transmit(seg *tcp.Segment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	payload, err := seg.TCPHeader.Marshal()
	if err != nil {
		return err
	}
	l.inbox = append(l.inbox, InboundSegment{
		SrcLinkAddr: seg.SrcLinkAddr,
		DstLinkAddr: seg.DstLinkAddr,
		IPHeader:    seg.IPHeader,
		Payload:     payload,
	})
	return nil
}

func (l *Loopback) Poll() ([]InboundSegment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, nil
	}
	drained := l.inbox
	l.inbox = nil
	return drained, nil
}
