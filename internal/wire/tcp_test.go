package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := NewTcpHeader(40000, 80)
	h.SetSYN(true)
	h.SetACK(true)
	h.SeqNum = 111
	h.AckNum = 222
	h.WindowSize = 0xFFFF
	h.PushOption(MSSOption(1460))
	h.PushOption(WindowScaleOption(7))

	buf, err := h.Marshal()
	require.NoError(t, err)
	require.Equal(t, 0, len(buf)%4, "serialized header must be word-aligned")

	got, err := UnmarshalTcpHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.SrcPort, got.SrcPort)
	require.Equal(t, h.DstPort, got.DstPort)
	require.Equal(t, h.SeqNum, got.SeqNum)
	require.Equal(t, h.AckNum, got.AckNum)
	require.True(t, got.SYN())
	require.True(t, got.ACK())
	require.Equal(t, h.WindowSize, got.WindowSize)
	require.Len(t, got.Options, 2)
	require.Equal(t, OptionMaximumSegmentSize, got.Options[0].Kind)
	require.Equal(t, uint16(1460), got.Options[0].MSS)
	require.Equal(t, OptionWindowScale, got.Options[1].Kind)
	require.Equal(t, uint8(7), got.Options[1].WindowScale)
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	_, err := UnmarshalTcpHeader(make([]byte, 10))
	require.Error(t, err)
}

func TestUnmarshalSkipsUnknownOptionKinds(t *testing.T) {
	h := NewTcpHeader(1, 2)
	buf, err := h.Marshal()
	require.NoError(t, err)
	// Append a made-up option kind (kind=30, len=3, one pad byte) before the
	// terminator; parseOptions must skip it rather than fail.
	withUnknown := append(buf, 30, 3, 0, optKindEnd)
	got, err := UnmarshalTcpHeader(fixDataOffset(withUnknown))
	require.NoError(t, err)
	require.Empty(t, got.Options)
}

// fixDataOffset recomputes the data-offset nibble after manually appending
// option bytes in a test, since Marshal is the only code path that normally
// keeps the two in sync.
func fixDataOffset(buf []byte) []byte {
	words := len(buf) / 4
	buf[12] = byte(words) << 4
	return buf
}
