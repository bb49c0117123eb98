// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReliableExchanger(t *testing.T) {
	cfg := NewConfig()

	op := NewReliableExchanger(cfg, DefaultSLogger())

	require.NotNil(t, op)
	assert.NotNil(t, op.ErrClassifier)
	assert.NotNil(t, op.Logger)
	assert.Equal(t, DefaultMaxMessageSize, op.MaxMessageSize)
	assert.NotNil(t, op.TimeNow)
}

func TestReliableExchangerSend(t *testing.T) {
	request := []byte("150000 30 4.69")

	tests := []struct {
		// name describes what this test case verifies.
		name string

		// request is the request to send.
		request []byte

		// writeFunc simulates the session Write.
		writeFunc func(b []byte) (int, error)

		// wantErr is the expected error category (nil means success).
		wantErr error
	}{
		{
			name:      "whole request accepted",
			request:   request,
			writeFunc: func(b []byte) (int, error) { return len(b), nil },
		},

		{
			name:      "short write",
			request:   request,
			writeFunc: func(b []byte) (int, error) { return 3, nil },
			wantErr:   ErrPartialSend,
		},

		{
			name:      "write error",
			request:   request,
			writeFunc: func(b []byte) (int, error) { return 0, syscall.EPIPE },
			wantErr:   ErrSend,
		},

		{
			name:    "request too large",
			request: []byte(strings.Repeat("1", DefaultMaxMessageSize+1)),
			writeFunc: func(b []byte) (int, error) {
				panic("should not be called")
			},
			wantErr: ErrMessageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newMinimalConn()
			conn.WriteFunc = tt.writeFunc
			op := NewReliableExchanger(NewConfig(), DefaultSLogger())

			err := op.Send(context.Background(), conn, tt.request)

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// A send failure wraps the OS error so callers can inspect both.
func TestReliableExchangerSendWrapsCause(t *testing.T) {
	conn := newMinimalConn()
	conn.WriteFunc = func(b []byte) (int, error) { return 0, syscall.ECONNRESET }
	op := NewReliableExchanger(NewConfig(), DefaultSLogger())

	err := op.Send(context.Background(), conn, []byte("1 1 1"))

	assert.ErrorIs(t, err, ErrSend)
	assert.ErrorIs(t, err, syscall.ECONNRESET)
}

func TestReliableExchangerAwaitResponse(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// readFunc simulates the session Read.
		readFunc func(b []byte) (int, error)

		// want is the expected response.
		want string

		// wantErr is the expected error category (nil means success).
		wantErr error
	}{
		{
			name: "response returned verbatim",
			readFunc: func(b []byte) (int, error) {
				return copy(b, "\n$150000 loan\n"), nil
			},
			want: "\n$150000 loan\n",
		},

		{
			name:     "peer closed",
			readFunc: func(b []byte) (int, error) { return 0, io.EOF },
			wantErr:  ErrPeerClosed,
		},

		{
			name:     "zero bytes without error",
			readFunc: func(b []byte) (int, error) { return 0, nil },
			wantErr:  ErrPeerClosed,
		},

		{
			name:     "receive failure",
			readFunc: func(b []byte) (int, error) { return 0, syscall.ECONNRESET },
			wantErr:  ErrReceive,
		},

		{
			name: "response too large",
			readFunc: func(b []byte) (int, error) {
				return copy(b, strings.Repeat("x", len(b))), nil
			},
			wantErr: ErrMessageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newMinimalConn()
			conn.ReadFunc = tt.readFunc
			op := NewReliableExchanger(NewConfig(), DefaultSLogger())

			got, err := op.AwaitResponse(context.Background(), conn)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// AwaitResponse performs exactly one receive and never retries.
func TestReliableExchangerAwaitResponseSingleRead(t *testing.T) {
	reads := 0
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		reads++
		return copy(b, "part"), nil
	}
	op := NewReliableExchanger(NewConfig(), DefaultSLogger())

	got, err := op.AwaitResponse(context.Background(), conn)

	require.NoError(t, err)
	assert.Equal(t, "part", got)
	assert.Equal(t, 1, reads)
}

// Call does not attempt a receive when the send fails.
func TestReliableExchangerCallSendFailure(t *testing.T) {
	conn := newMinimalConn()
	conn.WriteFunc = func(b []byte) (int, error) { return 0, syscall.EPIPE }
	conn.ReadFunc = func(b []byte) (int, error) {
		panic("should not be called")
	}
	op := NewReliableExchanger(NewConfig(), DefaultSLogger())

	_, err := op.Call(context.Background(), conn, []byte("1 1 1"))

	require.ErrorIs(t, err, ErrSend)
}

// The session func closes the session on both success and failure.
func TestNewSessionFunc(t *testing.T) {
	for _, readErr := range []error{nil, io.EOF} {
		closed := 0
		conn := newMinimalConn()
		conn.WriteFunc = func(b []byte) (int, error) { return len(b), nil }
		conn.ReadFunc = func(b []byte) (int, error) {
			if readErr != nil {
				return 0, readErr
			}
			return copy(b, "ok"), nil
		}
		conn.CloseFunc = func() error {
			closed++
			return nil
		}
		fn := NewSessionFunc(NewReliableExchanger(NewConfig(), DefaultSLogger()), []byte("1 1 1"))

		got, err := fn.Call(context.Background(), conn)

		if readErr == nil {
			require.NoError(t, err)
			assert.Equal(t, "ok", got)
		} else {
			require.ErrorIs(t, err, ErrPeerClosed)
		}
		assert.Equal(t, 1, closed)
	}
}

// Cancelling the context while waiting for the response reports the
// cancellation rather than a receive failure on the closed session.
func TestNewSessionFuncCancelled(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		if _, err := conn.Read(buf); err == nil {
			cancel() // never respond
		}
		_, _ = conn.Read(buf)
	}()

	client, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	fn := NewSessionFunc(NewReliableExchanger(NewConfig(), DefaultSLogger()), []byte("1 1 1"))

	_, err = fn.Call(ctx, client)

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrReceive)
}

// Send and receive emit paired Debug events.
func TestReliableExchangerLogging(t *testing.T) {
	logger, records := newCapturingLogger()
	conn := newMinimalConn()
	conn.WriteFunc = func(b []byte) (int, error) { return len(b), nil }
	conn.ReadFunc = func(b []byte) (int, error) { return copy(b, "ok"), nil }
	op := NewReliableExchanger(NewConfig(), logger)

	_, err := op.Call(context.Background(), conn, []byte("1 1 1"))

	require.NoError(t, err)
	assert.Equal(t,
		[]string{"sendStart", "sendDone", "receiveStart", "receiveDone"},
		recordMessages(*records))
}

// Over a real loopback session, one send maps to one receive.
func TestReliableExchangerLoopback(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 64)
		count, err := server.Read(buf)
		if err != nil {
			return
		}
		_, _ = server.Write([]byte(strings.ToUpper(string(buf[:count]))))
	}()

	op := NewReliableExchanger(NewConfig(), DefaultSLogger())
	got, err := op.Call(context.Background(), client, []byte("hello"))

	require.NoError(t, err)
	assert.Equal(t, "HELLO", got)
}
