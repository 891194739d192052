package mftp

import (
	"fmt"
	"net"
)

// destination holds one receiver's address, dedicated outbound socket,
// and SaW cursor. last_ack_received ∈ {current_seq, current_seq + 1}
// always holds: it starts equal to current_seq (not yet acked for the
// in-flight packet) and becomes current_seq + 1 once the destination
// acks it.
type destination struct {
	host    string
	addr    *net.UDPAddr
	conn    *net.UDPConn
	segment uint32 // count of packets this destination has fully acked
	ackedAt uint32 // last_ack_received
}

// newDestination resolves host:port and opens a dedicated outbound
// socket; reads on it are bounded per poll by recvFromPolling.
func newDestination(host string, port int) (*destination, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	conn, err := openOutbound()
	if err != nil {
		return nil, fmt.Errorf("open outbound socket for %s: %w", host, err)
	}
	return &destination{host: host, addr: addr, conn: conn}, nil
}

// ackedForCurrent reports whether this destination has acknowledged the
// packet at currentSeq, i.e. last_ack_received == currentSeq + 1.
func (d *destination) ackedForCurrent(currentSeq uint32) bool {
	return d.ackedAt == currentSeq+1
}

func (d *destination) close() error {
	return d.conn.Close()
}
