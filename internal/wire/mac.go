package wire

import "fmt"

// MacAddress is a 6-byte Ethernet address, the unit ArpResolver deals in.
type MacAddress [6]byte

func (m MacAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (m MacAddress) IsZero() bool {
	return m == MacAddress{}
}
