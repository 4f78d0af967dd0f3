package demikernel

import (
	"fmt"
	"sync"

	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/transport"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// MockTransport is an in-memory transport.Transport for unit testing a
// LibOS without a real NIC or a Loopback's own bookkeeping. It tracks
// method calls for verification and lets a test inject inbound segments
// directly, independent of whatever it transmitted.
type MockTransport struct {
	mu sync.RWMutex

	arp      map[[4]byte]wire.MacAddress
	inbox    []transport.InboundSegment
	segments []*tcp.Segment
	failNext error

	readCalls  int
	writeCalls int
	pollCalls  int
}

// NewMockTransport creates an empty mock transport, useful for unit testing
// applications that use a LibOS without a real network runtime.
func NewMockTransport() *MockTransport {
	return &MockTransport{arp: make(map[[4]byte]wire.MacAddress)}
}

// Learn records a static IP-to-link-address mapping for ArpQuery to return.
func (m *MockTransport) Learn(ip [4]byte, mac wire.MacAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arp[ip] = mac
}

// FailNextTransmit makes the next Transmit call return err instead of
// recording the segment, then clears itself.
func (m *MockTransport) FailNextTransmit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Transmit implements transport.Transport.
func (m *MockTransport) Transmit(seg *tcp.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	m.segments = append(m.segments, seg)
	return nil
}

// ArpQuery implements transport.Transport.
func (m *MockTransport) ArpQuery(ip [4]byte) (wire.MacAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mac, ok := m.arp[ip]
	if !ok {
		return wire.MacAddress{}, fmt.Errorf("demikernel: mock transport has no ARP entry for %v", ip)
	}
	return mac, nil
}

// Poll implements transport.Transport, draining whatever the test queued
// with Deliver/DeliverHeader since the last call.
func (m *MockTransport) Poll() ([]transport.InboundSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++
	m.pollCalls++

	if len(m.inbox) == 0 {
		return nil, nil
	}
	drained := m.inbox
	m.inbox = nil
	return drained, nil
}

// Deliver queues seg as if it had arrived over the wire, to be picked up by
// the next Poll call.
func (m *MockTransport) Deliver(seg transport.InboundSegment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, seg)
}

// DeliverHeader marshals hdr and queues it wrapped in an InboundSegment.
func (m *MockTransport) DeliverHeader(ipHdr *wire.Ipv4Header, hdr *wire.TcpHeader) error {
	payload, err := hdr.Marshal()
	if err != nil {
		return err
	}
	m.Deliver(transport.InboundSegment{IPHeader: ipHdr, Payload: payload})
	return nil
}

// TransmittedSegments returns every segment handed to Transmit so far.
func (m *MockTransport) TransmittedSegments() []*tcp.Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*tcp.Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// CallCounts returns the number of Transmit and Poll calls so far (keys
// "transmit" and "poll"; ArpQuery is not counted), for tests asserting on
// interactions rather than effects.
func (m *MockTransport) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"transmit": m.writeCalls,
		"poll":     m.pollCalls,
	}
}

// Reset clears all call counters and queued state.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls = 0
	m.writeCalls = 0
	m.pollCalls = 0
	m.segments = nil
	m.inbox = nil
	m.failNext = nil
}

var _ transport.Transport = (*MockTransport)(nil)
