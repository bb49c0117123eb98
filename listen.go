// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"net"
	"net/netip"
)

// Listen returns a TCP listener bound to the given address.
//
// The cfg argument provides the listen backlog. The address argument is
// an IPv4 address and port (e.g., "0.0.0.0:13000").
//
// The listening socket enables SO_REUSEADDR so that a restarted server
// can bind again while old sessions linger in TIME_WAIT. On platforms
// lacking the required system calls, the backlog is the system default.
func Listen(ctx context.Context, cfg *Config, address string) (net.Listener, error) {
	endpoint, err := netip.ParseAddrPort(address)
	if err != nil || !endpoint.Addr().Unmap().Is4() {
		lc := &net.ListenConfig{}
		return lc.Listen(ctx, "tcp", address)
	}
	endpoint = netip.AddrPortFrom(endpoint.Addr().Unmap(), endpoint.Port())
	return listenTCP4(ctx, endpoint, cfg.Backlog)
}

// ListenPacket returns a UDP socket bound to the given address.
func ListenPacket(ctx context.Context, address string) (net.PacketConn, error) {
	lc := &net.ListenConfig{}
	return lc.ListenPacket(ctx, "udp4", address)
}

func listenError(endpoint netip.AddrPort, err error) error {
	return &net.OpError{
		Op:   "listen",
		Net:  "tcp",
		Addr: net.TCPAddrFromAddrPort(endpoint),
		Err:  err,
	}
}
