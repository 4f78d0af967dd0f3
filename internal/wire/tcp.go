// Package wire implements the on-the-wire encode/decode this libOS needs
// for the TCP passive-open handshake: the TCP header, its variable-length
// option list (MSS, window scale), and the minimal IPv4 header fields the
// handshake reads. It deliberately stops at what passive-open needs — full
// checksum/fragmentation/option coverage is out of scope here.
package wire

import (
	"encoding/binary"
	"fmt"
)

// TCP flag bits, matching the header's single flags byte.
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

// Option kind bytes (RFC 793/1323), restricted to the two kinds passive
// open actually negotiates.
const (
	optKindEnd       = 0
	optKindNop       = 1
	optKindMSS       = 2
	optKindWindowScale = 3
)

// TcpHeader is the subset of a TCP segment header the passive-open state
// machine reads and writes: ports, sequence numbers, flags, window, and an
// option list. No checksum field is modeled; transports that need one
// compute it from the serialized bytes.
type TcpHeader struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	Flags      uint8
	WindowSize uint16
	Options    []Option
}

// NewTcpHeader builds a zero-value header for the given port pair, mirroring
// the original's TcpHeader::new(local_port, remote_port) convenience.
func NewTcpHeader(srcPort, dstPort uint16) *TcpHeader {
	return &TcpHeader{SrcPort: srcPort, DstPort: dstPort}
}

func (h *TcpHeader) SYN() bool { return h.Flags&FlagSYN != 0 }
func (h *TcpHeader) ACK() bool { return h.Flags&FlagACK != 0 }
func (h *TcpHeader) RST() bool { return h.Flags&FlagRST != 0 }

func (h *TcpHeader) SetSYN(v bool) { h.setFlag(FlagSYN, v) }
func (h *TcpHeader) SetACK(v bool) { h.setFlag(FlagACK, v) }
func (h *TcpHeader) SetRST(v bool) { h.setFlag(FlagRST, v) }

func (h *TcpHeader) setFlag(bit uint8, v bool) {
	if v {
		h.Flags |= bit
	} else {
		h.Flags &^= bit
	}
}

// PushOption appends an option to the header's option list, in the order
// it should be serialized (mirrors push_option in the original).
func (h *TcpHeader) PushOption(o Option) {
	h.Options = append(h.Options, o)
}

// Option is a single parsed TCP option. Kind distinguishes the two variants
// passive open cares about; unrecognized kinds are skipped during parsing.
type Option struct {
	Kind        OptionKind
	MSS         uint16
	WindowScale uint8
}

type OptionKind int

const (
	OptionUnknown OptionKind = iota
	OptionMaximumSegmentSize
	OptionWindowScale
)

// MSSOption and WindowScaleOption build the two option variants passive
// open's background retry loop advertises.
func MSSOption(mss uint16) Option { return Option{Kind: OptionMaximumSegmentSize, MSS: mss} }
func WindowScaleOption(shift uint8) Option {
	return Option{Kind: OptionWindowScale, WindowScale: shift}
}

// Marshal serializes the header (fixed 20-byte base plus padded options) in
// network byte order. The data-offset field is computed from the final
// length, matching a real TCP header's 32-bit-word framing.
func (h *TcpHeader) Marshal() ([]byte, error) {
	optBytes, err := marshalOptions(h.Options)
	if err != nil {
		return nil, err
	}
	total := 20 + len(optBytes)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], h.SeqNum)
	binary.BigEndian.PutUint32(buf[8:12], h.AckNum)
	dataOffsetWords := uint8(total / 4)
	buf[12] = dataOffsetWords << 4
	buf[13] = h.Flags
	binary.BigEndian.PutUint16(buf[14:16], h.WindowSize)
	// buf[16:18] checksum, buf[18:20] urgent pointer: left zero, out of scope.
	copy(buf[20:], optBytes)
	return buf, nil
}

// UnmarshalTcpHeader parses a serialized header, including its option list.
func UnmarshalTcpHeader(buf []byte) (*TcpHeader, error) {
	if len(buf) < 20 {
		return nil, fmt.Errorf("wire: tcp header too short: %d bytes", len(buf))
	}
	h := &TcpHeader{
		SrcPort:    binary.BigEndian.Uint16(buf[0:2]),
		DstPort:    binary.BigEndian.Uint16(buf[2:4]),
		SeqNum:     binary.BigEndian.Uint32(buf[4:8]),
		AckNum:     binary.BigEndian.Uint32(buf[8:12]),
		Flags:      buf[13],
		WindowSize: binary.BigEndian.Uint16(buf[14:16]),
	}
	dataOffset := int(buf[12]>>4) * 4
	if dataOffset < 20 || dataOffset > len(buf) {
		return nil, fmt.Errorf("wire: invalid tcp data offset: %d", dataOffset)
	}
	opts, err := parseOptions(buf[20:dataOffset])
	if err != nil {
		return nil, err
	}
	h.Options = opts
	return h, nil
}

func marshalOptions(opts []Option) ([]byte, error) {
	var buf []byte
	for _, o := range opts {
		switch o.Kind {
		case OptionMaximumSegmentSize:
			buf = append(buf, optKindMSS, 4)
			tmp := make([]byte, 2)
			binary.BigEndian.PutUint16(tmp, o.MSS)
			buf = append(buf, tmp...)
		case OptionWindowScale:
			buf = append(buf, optKindWindowScale, 3, o.WindowScale)
		default:
			return nil, fmt.Errorf("wire: unknown option kind %d", o.Kind)
		}
	}
	for len(buf)%4 != 0 {
		buf = append(buf, optKindNop)
	}
	return buf, nil
}

// parseOptions walks a TCP option list (kind/len/value triples, NOP and END
// as single bytes), returning every MSS/WindowScale option found in order
// and silently skipping anything else — mirroring the original's
// `for option in header.iter_options() { match option { ... _ => continue } }`.
func parseOptions(buf []byte) ([]Option, error) {
	var opts []Option
	for i := 0; i < len(buf); {
		kind := buf[i]
		switch kind {
		case optKindEnd:
			return opts, nil
		case optKindNop:
			i++
			continue
		}
		if i+1 >= len(buf) {
			return nil, fmt.Errorf("wire: truncated tcp option at offset %d", i)
		}
		length := int(buf[i+1])
		if length < 2 || i+length > len(buf) {
			return nil, fmt.Errorf("wire: invalid tcp option length at offset %d", i)
		}
		switch kind {
		case optKindMSS:
			if length != 4 {
				return nil, fmt.Errorf("wire: invalid MSS option length %d", length)
			}
			opts = append(opts, MSSOption(binary.BigEndian.Uint16(buf[i+2:i+4])))
		case optKindWindowScale:
			if length != 3 {
				return nil, fmt.Errorf("wire: invalid window scale option length %d", length)
			}
			opts = append(opts, WindowScaleOption(buf[i+2]))
		}
		i += length
	}
	return opts, nil
}
