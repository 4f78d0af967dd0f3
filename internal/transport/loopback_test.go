package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HelloKayT/demikernel-go/internal/tcp"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

func TestLoopbackArpQueryUnknownFails(t *testing.T) {
	lb := NewLoopback()
	_, err := lb.ArpQuery([4]byte{10, 0, 0, 9})
	require.Error(t, err)
}

func TestLoopbackLearnThenArpQuerySucceeds(t *testing.T) {
	lb := NewLoopback()
	mac := wire.MacAddress{1, 2, 3, 4, 5, 6}
	lb.Learn([4]byte{10, 0, 0, 2}, mac)

	got, err := lb.ArpQuery([4]byte{10, 0, 0, 2})
	require.NoError(t, err)
	require.Equal(t, mac, got)
}

func TestLoopbackTransmitThenPollDeliversSegment(t *testing.T) {
	lb := NewLoopback()
	hdr := wire.NewTcpHeader(80, 40000)
	hdr.SetSYN(true)
	seg := &tcp.Segment{
		SrcLinkAddr: wire.MacAddress{1, 1, 1, 1, 1, 1},
		DstLinkAddr: wire.MacAddress{2, 2, 2, 2, 2, 2},
		IPHeader:    wire.NewIpv4Header([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}),
		TCPHeader:   hdr,
	}
	require.NoError(t, lb.Transmit(seg))

	delivered, err := lb.Poll()
	require.NoError(t, err)
	require.Len(t, delivered, 1)

	got, err := wire.UnmarshalTcpHeader(delivered[0].Payload)
	require.NoError(t, err)
	require.True(t, got.SYN())
	require.Equal(t, uint16(80), got.SrcPort)
}

func TestLoopbackPollDrainsQueueOnce(t *testing.T) {
	lb := NewLoopback()
	hdr := wire.NewTcpHeader(1, 2)
	seg := &tcp.Segment{IPHeader: wire.NewIpv4Header([4]byte{}, [4]byte{}), TCPHeader: hdr}
	require.NoError(t, lb.Transmit(seg))

	first, err := lb.Poll()
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := lb.Poll()
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestAsArpResolverAdaptsTransport(t *testing.T) {
	lb := NewLoopback()
	mac := wire.MacAddress{9, 9, 9, 9, 9, 9}
	lb.Learn([4]byte{10, 0, 0, 5}, mac)

	resolver := AsArpResolver(lb)
	got, err := resolver.Query([4]byte{10, 0, 0, 5})
	require.NoError(t, err)
	require.Equal(t, mac, got)
}
