//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

func (d *HandshakeDialer) dialTCP4(ctx context.Context, endpoint netip.AddrPort) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, dialError(endpoint, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, dialError(endpoint, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, dialError(endpoint, os.NewSyscallError("setnonblock", err))
	}

	sa := &unix.SockaddrInet4{Port: int(endpoint.Port()), Addr: endpoint.Addr().As4()}
	if err := connectNonblocking(ctx, fd, sa); err != nil {
		unix.Close(fd)
		return nil, dialError(endpoint, err)
	}

	// net.FileConn duplicates the descriptor, so we always close ours.
	file := os.NewFile(uintptr(fd), "tcp:"+endpoint.String())
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, dialError(endpoint, err)
	}
	return conn, nil
}

func connectNonblocking(ctx context.Context, fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EINTR):
		return awaitWritable(ctx, fd)
	default:
		return os.NewSyscallError("connect", err)
	}
}

// awaitWritable waits for the in-progress connect on fd to complete.
//
// The wait is bounded by the context deadline; without a deadline it only
// ends on completion or cancellation.
func awaitWritable(ctx context.Context, fd int) error {
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return os.NewSyscallError("connect", unix.ETIMEDOUT)
			}
			return err
		}
		wait := handshakePollInterval
		if deadline, ok := ctx.Deadline(); ok {
			wait = min(wait, time.Until(deadline))
		}
		if wait <= 0 {
			return os.NewSyscallError("connect", unix.ETIMEDOUT)
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, max(int(wait.Milliseconds()), 1))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			continue
		}

		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return os.NewSyscallError("getsockopt", err)
		}
		if soerr != 0 {
			return os.NewSyscallError("connect", unix.Errno(soerr))
		}
		return nil
	}
}
