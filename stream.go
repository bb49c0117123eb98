// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewReliableExchanger returns a new [*ReliableExchanger].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewReliableExchanger(cfg *Config, logger SLogger) *ReliableExchanger {
	return &ReliableExchanger{
		ErrClassifier:  cfg.ErrClassifier,
		Logger:         logger,
		MaxMessageSize: cfg.MaxMessageSize,
		TimeNow:        cfg.TimeNow,
	}
}

// ReliableExchanger sends one request and awaits one response over a session.
//
// The wire format is raw text with no framing: one send maps to one receive.
// There is no retry at this layer.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to its methods.
type ReliableExchanger struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewReliableExchanger] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewReliableExchanger] to the user-provided logger.
	Logger SLogger

	// MaxMessageSize bounds both the request and the response.
	//
	// Set by [NewReliableExchanger] from [Config.MaxMessageSize].
	MaxMessageSize int

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewReliableExchanger] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Send writes the whole request to the session.
//
// A short write returns an error wrapping [ErrPartialSend]; any other write
// failure returns an error wrapping [ErrSend].
func (op *ReliableExchanger) Send(ctx context.Context, conn net.Conn, request []byte) error {
	if len(request) > op.MaxMessageSize {
		return fmt.Errorf("%w: request is %d bytes, limit is %d", ErrMessageTooLarge, len(request), op.MaxMessageSize)
	}
	t0 := op.TimeNow()
	op.logIOStart(conn, "sendStart", len(request), t0)
	count, err := conn.Write(request)
	switch {
	case count > 0 && count < len(request):
		err = fmt.Errorf("%w: %d of %d bytes sent", ErrPartialSend, count, len(request))
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrSend, err)
	}
	op.logIODone(conn, "sendDone", count, t0, err)
	return err
}

// AwaitResponse performs exactly one blocking receive on the session.
//
// Receiving zero bytes returns an error wrapping [ErrPeerClosed]. A receive
// failure returns an error wrapping [ErrReceive]. A response larger than
// MaxMessageSize returns an error wrapping [ErrMessageTooLarge].
func (op *ReliableExchanger) AwaitResponse(ctx context.Context, conn net.Conn) (string, error) {
	t0 := op.TimeNow()
	buf := make([]byte, op.MaxMessageSize+1)
	op.logIOStart(conn, "receiveStart", len(buf), t0)
	count, err := readMessage(conn, buf, op.MaxMessageSize)
	op.logIODone(conn, "receiveDone", count, t0, err)
	if err != nil {
		return "", err
	}
	return string(buf[:count]), nil
}

// Call sends the request and awaits the response.
func (op *ReliableExchanger) Call(ctx context.Context, conn net.Conn, request []byte) (string, error) {
	if err := op.Send(ctx, conn, request); err != nil {
		return "", err
	}
	return op.AwaitResponse(ctx, conn)
}

// readMessage performs one read of at most len(buf) bytes and maps the
// outcome to the stream error taxonomy. The buf must be larger than limit
// so that an oversized message is detected rather than silently truncated.
func readMessage(conn net.Conn, buf []byte, limit int) (int, error) {
	count, err := conn.Read(buf)
	switch {
	case count > limit:
		return count, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, limit)
	case count > 0:
		return count, nil
	case err == nil, errors.Is(err, io.EOF):
		return 0, ErrPeerClosed
	default:
		return 0, fmt.Errorf("%w: %w", ErrReceive, err)
	}
}

// NewSessionFunc returns a [Func] that performs one exchange over a
// session and always closes it, as sessions are never reused.
func NewSessionFunc(exchanger *ReliableExchanger, request []byte) Func[net.Conn, string] {
	return FuncAdapter[net.Conn, string](func(ctx context.Context, conn net.Conn) (string, error) {
		defer conn.Close()
		stop := closeOnDone(ctx, conn)
		defer stop()
		response, err := exchanger.Call(ctx, conn, request)
		if err != nil && errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return response, err
	})
}

func (op *ReliableExchanger) logIOStart(conn net.Conn, event string, size int, t0 time.Time) {
	op.Logger.Debug(
		event,
		slog.Int("ioBufferSize", size),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func (op *ReliableExchanger) logIODone(conn net.Conn, event string, count int, t0 time.Time, err error) {
	op.Logger.Debug(
		event,
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
