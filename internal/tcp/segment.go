package tcp

import (
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

// Segment is a fully-built outbound TCP segment: link, network, and
// transport headers, with no payload (passive open never carries data).
type Segment struct {
	SrcLinkAddr wire.MacAddress
	DstLinkAddr wire.MacAddress
	IPHeader    *wire.Ipv4Header
	TCPHeader   *wire.TcpHeader
}

// Transmitter is the narrow capability PassiveSocket needs from the network
// runtime: hand a built segment off for transmission. Satisfied by
// internal/transport's Transport implementations.
type Transmitter interface {
	Transmit(seg *Segment) error
}

// ArpResolver is the narrow capability PassiveSocket needs to turn a remote
// IP into a link address before it can address a SYN+ACK.
type ArpResolver interface {
	Query(ip [4]byte) (wire.MacAddress, error)
}
