// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making [*ReliableConnector] depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// handshakePollInterval is the longest single readiness wait, so that a
// cancelled context interrupts the handshake promptly.
const handshakePollInterval = 100 * time.Millisecond

// NewHandshakeDialer returns a new [*HandshakeDialer].
func NewHandshakeDialer() *HandshakeDialer {
	return &HandshakeDialer{Fallback: &net.Dialer{}}
}

// HandshakeDialer dials IPv4 TCP endpoints with a manually bounded handshake.
//
// Each call creates a fresh socket in non-blocking mode and starts the
// connect. An immediate success returns right away. A connect in progress
// waits for the socket to become writable, bounded by the context deadline,
// and then reads the pending socket error. The returned [net.Conn] is
// handed to the Go runtime poller, so its Read blocks until data arrives.
//
// On platforms without the required system calls, and for networks other
// than tcp and tcp4, HandshakeDialer uses the Fallback dialer.
type HandshakeDialer struct {
	// Fallback dials everything the handshake logic does not handle.
	//
	// Set by [NewHandshakeDialer] to [*net.Dialer].
	Fallback Dialer
}

var _ Dialer = &HandshakeDialer{}

// DialContext implements [Dialer].
func (d *HandshakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4":
		endpoint, err := netip.ParseAddrPort(address)
		if err == nil && endpoint.Addr().Unmap().Is4() {
			endpoint = netip.AddrPortFrom(endpoint.Addr().Unmap(), endpoint.Port())
			return d.dialTCP4(ctx, endpoint)
		}
	}
	return d.Fallback.DialContext(ctx, network, address)
}

func dialError(endpoint netip.AddrPort, err error) error {
	return &net.OpError{
		Op:   "dial",
		Net:  "tcp",
		Addr: net.TCPAddrFromAddrPort(endpoint),
		Err:  err,
	}
}
