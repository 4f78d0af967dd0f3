package tcp

import "fmt"

// Endpoint is a comparable IPv4 socket address, used as a map key for the
// inflight/ready bookkeeping the way the original uses SocketAddrV4.
type Endpoint struct {
	IP   [4]byte
	Port uint16
}

func NewEndpoint(ip [4]byte, port uint16) Endpoint {
	return Endpoint{IP: ip, Port: port}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", e.IP[0], e.IP[1], e.IP[2], e.IP[3], e.Port)
}
