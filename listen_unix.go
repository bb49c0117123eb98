//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"
)

func listenTCP4(ctx context.Context, endpoint netip.AddrPort, backlog int) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, listenError(endpoint, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, listenError(endpoint, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, listenError(endpoint, os.NewSyscallError("setsockopt", err))
	}
	sa := &unix.SockaddrInet4{Port: int(endpoint.Port()), Addr: endpoint.Addr().As4()}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, listenError(endpoint, os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, listenError(endpoint, os.NewSyscallError("listen", err))
	}

	// net.FileListener duplicates the descriptor, so we always close ours.
	file := os.NewFile(uintptr(fd), "tcp-listener:"+endpoint.String())
	defer file.Close()
	ln, err := net.FileListener(file)
	if err != nil {
		return nil, listenError(endpoint, err)
	}
	return ln, nil
}
