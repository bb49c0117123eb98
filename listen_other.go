//go:build !(linux || darwin)

// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"net"
	"net/netip"
)

func listenTCP4(ctx context.Context, endpoint netip.AddrPort, backlog int) (net.Listener, error) {
	lc := &net.ListenConfig{}
	return lc.Listen(ctx, "tcp4", endpoint.String())
}
