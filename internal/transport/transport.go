// Package transport defines the narrow network-runtime boundary the libOS
// core talks to — transmit a built segment, resolve a link address, and
// poll for inbound segments — plus the implementations that satisfy it.
// Device drivers and L2/L3 codecs beyond what TCP option parsing needs are
// out of scope; this package only proves the boundary is real.
package transport

import (
	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// InboundSegment is a received frame handed back by Poll, still needing
// TCP-header parsing by the caller.
type InboundSegment struct {
	SrcLinkAddr wire.MacAddress
	DstLinkAddr wire.MacAddress
	IPHeader    *wire.Ipv4Header
	Payload     []byte
}

// Transport is the capability surface the libOS core needs from a network
// runtime: hand off an outbound segment, resolve a remote IP to a link
// address, and drain inbound frames. Satisfied by loopback (used by every
// test and the CLI demo) and, behind platform build tags, an io_uring- or
// raw-socket-backed implementation.
type Transport interface {
	Transmit(seg *tcp.Segment) error
	ArpQuery(ip [4]byte) (wire.MacAddress, error)
	Poll() ([]InboundSegment, error)
}

// ArpResolver is the subset of Transport PassiveSocket actually needs,
// letting tests substitute a resolver without a full Transport.
type ArpResolver interface {
	Query(ip [4]byte) (wire.MacAddress, error)
}

// arpAdapter lets any Transport satisfy tcp.ArpResolver directly.
type arpAdapter struct{ t Transport }

func AsArpResolver(t Transport) tcp.ArpResolver { return arpAdapter{t: t} }

func (a arpAdapter) Query(ip [4]byte) (wire.MacAddress, error) { return a.t.ArpQuery(ip) }
