package wire

// Ipv4Header carries the two fields the TCP passive-open path reads: the
// source and destination addresses. Fragmentation, TTL, and checksum are
// out of scope here.
type Ipv4Header struct {
	SrcAddr [4]byte
	DstAddr [4]byte
}

func NewIpv4Header(src, dst [4]byte) *Ipv4Header {
	return &Ipv4Header{SrcAddr: src, DstAddr: dst}
}
