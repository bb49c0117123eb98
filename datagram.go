// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewUnreliableExchanger returns a new [*UnreliableExchanger].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewUnreliableExchanger(cfg *Config, logger SLogger) *UnreliableExchanger {
	return &UnreliableExchanger{
		ErrClassifier:  cfg.ErrClassifier,
		Logger:         logger,
		MaxAttempts:    cfg.MaxAttempts,
		MaxMessageSize: cfg.MaxMessageSize,
		RetryDelay:     cfg.RetryDelay,
		Sleep:          cfg.Sleep,
		TimeNow:        cfg.TimeNow,
	}
}

// UnreliableExchanger delivers one request over a datagram socket and
// retransmits it until an acknowledged response arrives.
//
// Each cycle sends the whole request, then waits at most RetryDelay for a
// single datagram. Only a datagram carrying both ack markers ends the
// exchange. A timeout, a receive error, or a datagram lacking a marker
// starts a new cycle after sleeping RetryDelay, up to MaxAttempts cycles.
// A send that fails outright aborts the exchange without further cycles.
//
// The conn is expected to be connected to the peer (e.g., created by
// dialing "udp"), so Write sends to the peer and Read only returns
// datagrams coming from it.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type UnreliableExchanger struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewUnreliableExchanger] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewUnreliableExchanger] to the user-provided logger.
	Logger SLogger

	// MaxAttempts is the maximum number of send/wait cycles.
	//
	// Set by [NewUnreliableExchanger] from [Config.MaxAttempts].
	MaxAttempts int

	// MaxMessageSize bounds the request and each received datagram.
	//
	// Set by [NewUnreliableExchanger] from [Config.MaxMessageSize].
	MaxMessageSize int

	// RetryDelay bounds each wait and separates cycles.
	//
	// Set by [NewUnreliableExchanger] from [Config.RetryDelay].
	RetryDelay time.Duration

	// Sleep waits between cycles (configurable for testing).
	//
	// Set by [NewUnreliableExchanger] from [Config.Sleep].
	Sleep func(ctx context.Context, d time.Duration) error

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewUnreliableExchanger] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Call sends the request and returns the unwrapped acknowledged payload.
//
// Exhausting all the cycles returns an error wrapping [ErrAckExhausted]
// and the error of the last cycle.
func (op *UnreliableExchanger) Call(ctx context.Context, conn net.Conn, request []byte) (string, error) {
	if len(request) > op.MaxMessageSize {
		return "", fmt.Errorf("%w: request is %d bytes, limit is %d", ErrMessageTooLarge, len(request), op.MaxMessageSize)
	}

	budget := NewRetryBudget(op.MaxAttempts, op.RetryDelay)
	buf := make([]byte, op.MaxMessageSize+1)
	for {
		if err := op.send(conn, request, budget.Attempts+1); err != nil {
			return "", err
		}
		payload, err := op.awaitAck(conn, buf, budget)
		budget = budget.Next()
		if err == nil {
			return payload, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if budget.Exhausted() {
			op.Logger.Info(
				"ackExhausted",
				slog.Int("attempts", budget.Attempts),
				slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
			)
			return "", fmt.Errorf("%w after %d attempts: %w", ErrAckExhausted, budget.Attempts, err)
		}
		op.Logger.Warn(
			"ackRetry",
			slog.Int("attempt", budget.Attempts),
			slog.Any("err", err),
			slog.String("errClass", op.ErrClassifier.Classify(err)),
			slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		)
		if err := op.Sleep(ctx, budget.Delay); err != nil {
			return "", err
		}
	}
}

// send transmits the request once. A short write is only a warning since
// the peer will not acknowledge it and the next cycle resends.
func (op *UnreliableExchanger) send(conn net.Conn, request []byte, attempt int) error {
	t0 := op.TimeNow()
	op.Logger.Debug(
		"sendStart",
		slog.Int("attempt", attempt),
		slog.Int("ioBufferSize", len(request)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
	count, err := conn.Write(request)
	if err != nil && count <= 0 {
		err = fmt.Errorf("%w: %w", ErrSend, err)
	} else {
		err = nil
	}
	op.Logger.Debug(
		"sendDone",
		slog.Int("attempt", attempt),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	if err == nil && count < len(request) {
		op.Logger.Warn(
			"sendPartial",
			slog.Int("attempt", attempt),
			slog.Int("ioBytesCount", count),
			slog.Int("ioBufferSize", len(request)),
			slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		)
	}
	return err
}

// awaitAck performs one receive bounded by the budget delay.
func (op *UnreliableExchanger) awaitAck(conn net.Conn, buf []byte, budget RetryBudget) (string, error) {
	t0 := op.TimeNow()
	deadline := t0.Add(budget.Delay)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAckTimeout, err)
	}
	defer conn.SetReadDeadline(time.Time{})

	op.Logger.Debug(
		"receiveStart",
		slog.Int("attempt", budget.Attempts+1),
		slog.Time("deadline", deadline),
		slog.Int("ioBufferSize", len(buf)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
	count, err := conn.Read(buf)
	payload, err := op.unwrap(buf, count, err)
	op.Logger.Debug(
		"receiveDone",
		slog.Int("attempt", budget.Attempts+1),
		slog.Time("deadline", deadline),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	return payload, err
}

func (op *UnreliableExchanger) unwrap(buf []byte, count int, err error) (string, error) {
	switch {
	case err != nil && count <= 0:
		return "", fmt.Errorf("%w: %w", ErrAckTimeout, err)
	case count > op.MaxMessageSize:
		return "", fmt.Errorf("%w: %w: more than %d bytes",
			ErrAckFramingIncomplete, ErrMessageTooLarge, op.MaxMessageSize)
	default:
		return UnwrapAck(buf[:count])
	}
}

// NewDatagramFunc returns a [Func] that performs one acknowledged
// exchange over a datagram conn and always closes it.
func NewDatagramFunc(exchanger *UnreliableExchanger, request []byte) Func[net.Conn, string] {
	return FuncAdapter[net.Conn, string](func(ctx context.Context, conn net.Conn) (string, error) {
		defer conn.Close()
		stop := closeOnDone(ctx, conn)
		defer stop()
		payload, err := exchanger.Call(ctx, conn, request)
		if err != nil && errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return payload, err
	})
}

// NewDatagramDialFunc returns a [Func] that creates a datagram conn
// connected to the given endpoint using the given [Dialer].
func NewDatagramDialFunc(dialer Dialer) Func[netip.AddrPort, net.Conn] {
	return FuncAdapter[netip.AddrPort, net.Conn](func(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
		return dialer.DialContext(ctx, "udp", address.String())
	})
}
