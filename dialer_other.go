//go:build !(linux || darwin)

// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"net"
	"net/netip"
)

func (d *HandshakeDialer) dialTCP4(ctx context.Context, endpoint netip.AddrPort) (net.Conn, error) {
	return d.Fallback.DialContext(ctx, "tcp4", endpoint.String())
}
