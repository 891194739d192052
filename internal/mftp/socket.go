package mftp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// bindInbound creates a datagram socket bound to host:port. Used by
// receivers; fails loudly since a bind failure is fatal. An empty host
// binds the wildcard address (0.0.0.0), matching the original server's
// INADDR_ANY bind.
func bindInbound(host string, port int) (*net.UDPConn, error) {
	ip := net.IPv4zero
	if host != "" {
		resolved, err := net.ResolveIPAddr("ip", host)
		if err != nil {
			return nil, fmt.Errorf("resolve bind host %s: %w", host, err)
		}
		ip = resolved.IP
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind error: %w", err)
	}
	return conn, nil
}

// openOutbound creates a datagram socket on an ephemeral local port. It
// sets no read deadline itself: recvFromPolling applies the short 10µs
// deadline before each read, so the sender's SaW wait loop can poll many
// destinations without blocking on any one of them. One is created per
// destination.
func openOutbound() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open outbound socket: %w", err)
	}
	return conn, nil
}

// sendTo writes buf to addr over conn.
func sendTo(conn *net.UDPConn, buf []byte, addr *net.UDPAddr) error {
	_, err := conn.WriteToUDP(buf, addr)
	return err
}

// recvFrom attempts one read from conn into buf, honoring any deadline
// already configured via SetReadDeadline (recvFromPolling, its only
// caller, sets a 10µs deadline before every poll).
// It returns 0 on timeout, and 0 with a nil error if the connection was
// closed out from under it (cooperative shutdown).
func recvFrom(conn *net.UDPConn, buf []byte) (int, error) {
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		if isClosedNetErr(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// recvFromAddr reads one datagram into buf, returning the sender's address
// alongside the byte count. The read deadline is set to timeout first so
// callers (the receiver's main loop) can periodically check a context for
// cancellation between blocking reads.
func recvFromAddr(conn *net.UDPConn, buf []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, fmt.Errorf("set read deadline: %w", err)
	}
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		if isTimeout(err) || isClosedNetErr(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// recvFromPolling sets the standard 10µs polling deadline before reading,
// so the sender's SaW wait loop can round-robin many destination sockets
// without blocking on any single one.
func recvFromPolling(conn *net.UDPConn, buf []byte) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(outboundRecvTimeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	return recvFrom(conn, buf)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isClosedNetErr recognizes the assorted errors net returns once a
// connection has been closed underneath a blocked read, so cooperative
// shutdown doesn't get reported as a failure.
func isClosedNetErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}
