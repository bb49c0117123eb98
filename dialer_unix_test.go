//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// A loopback listener completes the handshake and the conn is usable.
func TestHandshakeDialerLoopback(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := NewHandshakeDialer().DialContext(ctx, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, ln.Addr().String(), conn.RemoteAddr().String())

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	// The conn blocks on Read until the peer writes.
	go func() {
		time.Sleep(50 * time.Millisecond)
		server.Write([]byte("hello"))
	}()
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

// A port without a listener is refused.
func TestHandshakeDialerRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	address := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := NewHandshakeDialer().DialContext(ctx, "tcp", address)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, unix.ECONNREFUSED)
	assert.ErrorIs(t, classifyConnectError(err), ErrConnectionRefused)
}

// An expired context fails before creating any socket.
func TestHandshakeDialerExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := NewHandshakeDialer().DialContext(ctx, "tcp", "127.0.0.1:13000")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, conn)
}

// fillAcceptQueue returns the address of a listener that never accepts and
// whose accept queue is full, so new handshakes stay in progress.
func fillAcceptQueue(t *testing.T) string {
	t.Helper()
	cfg := NewConfig()
	cfg.Backlog = 1
	ln, err := Listen(context.Background(), cfg, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	dialer := &net.Dialer{Timeout: 200 * time.Millisecond}
	for range 64 {
		conn, err := dialer.Dial("tcp4", ln.Addr().String())
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ln.Addr().String()
		}
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
	}
	t.Skip("the kernel did not stop completing handshakes")
	return ""
}

// A handshake that never completes fails with a timeout once the
// context deadline expires.
func TestHandshakeDialerTimeout(t *testing.T) {
	address := fillAcceptQueue(t)
	const bound = 300 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), bound)
	defer cancel()

	t0 := time.Now()
	conn, err := NewHandshakeDialer().DialContext(ctx, "tcp", address)
	elapsed := time.Since(t0)

	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, unix.ETIMEDOUT)
	assert.ErrorIs(t, classifyConnectError(err), ErrConnectionTimeout)
	assert.GreaterOrEqual(t, elapsed, bound-20*time.Millisecond)
	assert.Less(t, elapsed, bound+time.Second)
}

// The connector bounds each real handshake and retries with fresh sockets.
func TestReliableConnectorHandshakeTimeout(t *testing.T) {
	endpoint := netip.MustParseAddrPort(fillAcceptQueue(t))
	cfg, sleeper := newTestConfig()
	cfg.MaxAttempts = 3
	cfg.RetryDelay = 300 * time.Millisecond
	op := NewReliableConnector(cfg, DefaultSLogger())

	t0 := time.Now()
	conn, err := op.Call(context.Background(), endpoint)
	elapsed := time.Since(t0)

	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrConnectionExhausted)
	assert.ErrorIs(t, err, ErrConnectionTimeout)
	assert.ErrorIs(t, err, unix.ETIMEDOUT)
	assert.Equal(t, []time.Duration{cfg.RetryDelay, cfg.RetryDelay}, sleeper.sleeps)
	// Sleeps are recorded, not performed: only the three handshakes take time.
	assert.GreaterOrEqual(t, elapsed, 3*cfg.RetryDelay-50*time.Millisecond)
}
