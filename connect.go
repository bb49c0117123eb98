//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package loanwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/errclass"
	"github.com/bassosimone/safeconn"
)

// ConnectState is a state of the [*ReliableConnector] state machine.
type ConnectState string

// States of the [*ReliableConnector] state machine.
const (
	ConnectStateIdle       = ConnectState("idle")
	ConnectStateConnecting = ConnectState("connecting")
	ConnectStateConnected  = ConnectState("connected")
	ConnectStateFailed     = ConnectState("failed")
)

// NewReliableConnector returns a new [*ReliableConnector].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewReliableConnector(cfg *Config, logger SLogger) *ReliableConnector {
	return &ReliableConnector{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		Sleep:         cfg.Sleep,
		TimeNow:       cfg.TimeNow,
	}
}

// ReliableConnector establishes a TCP session with a bounded handshake.
//
// Every attempt moves from idle to connecting using a brand-new socket, then
// to either connected or failed. The handshake of each attempt is bounded by
// RetryDelay. A failed attempt closes its socket; after sleeping RetryDelay, a
// new attempt starts from idle, up to MaxAttempts attempts in total.
//
// Returns either a valid [net.Conn] or an error, never both. When all the
// attempts fail, the error wraps [ErrConnectionExhausted] and the error
// of the last attempt, which in turn wraps one of [ErrConnectionTimeout],
// [ErrConnectionRefused] or [ErrConnectionOther].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ReliableConnector struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewReliableConnector] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewReliableConnector] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewReliableConnector] to the user-provided logger.
	Logger SLogger

	// MaxAttempts is the maximum number of connection attempts.
	//
	// Set by [NewReliableConnector] from [Config.MaxAttempts].
	MaxAttempts int

	// RetryDelay bounds each handshake and separates attempts.
	//
	// Set by [NewReliableConnector] from [Config.RetryDelay].
	RetryDelay time.Duration

	// Sleep waits between attempts (configurable for testing).
	//
	// Set by [NewReliableConnector] from [Config.Sleep].
	Sleep func(ctx context.Context, d time.Duration) error

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewReliableConnector] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[netip.AddrPort, net.Conn] = &ReliableConnector{}

// Call connects to the given [netip.AddrPort], retrying failed attempts.
func (op *ReliableConnector) Call(ctx context.Context, address netip.AddrPort) (net.Conn, error) {
	budget := NewRetryBudget(op.MaxAttempts, op.RetryDelay)
	for {
		conn, err := op.attempt(ctx, address, budget)
		budget = budget.Next()
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if budget.Exhausted() {
			op.Logger.Info(
				"connectExhausted",
				slog.Int("attempts", budget.Attempts),
				slog.String("remoteAddr", address.String()),
			)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectionExhausted, budget.Attempts, err)
		}
		if err := op.Sleep(ctx, budget.Delay); err != nil {
			return nil, err
		}
	}
}

// attempt runs the state machine once using a fresh socket.
func (op *ReliableConnector) attempt(ctx context.Context, address netip.AddrPort, budget RetryBudget) (net.Conn, error) {
	attempt := budget.Attempts + 1
	op.logState(address, attempt, ConnectStateIdle, nil)

	t0 := op.TimeNow()
	ctx, cancel := context.WithTimeout(ctx, budget.Delay)
	defer cancel()
	deadline, _ := ctx.Deadline()

	op.logState(address, attempt, ConnectStateConnecting, nil)
	op.logConnectStart(address.String(), attempt, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, "tcp", address.String())
	if err != nil {
		err = classifyConnectError(err)
	}
	op.logConnectDone(address.String(), attempt, t0, deadline, conn, err)

	if err != nil {
		if conn != nil {
			conn.Close()
		}
		op.logState(address, attempt, ConnectStateFailed, err)
		return nil, err
	}
	op.logState(address, attempt, ConnectStateConnected, nil)
	return conn, nil
}

// classifyConnectError wraps err with its connect failure category.
func classifyConnectError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errclass.New(err) == errclass.ETIMEDOUT,
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrConnectionTimeout, err)

	case errclass.New(err) == errclass.ECONNREFUSED:
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)

	default:
		return fmt.Errorf("%w: %w", ErrConnectionOther, err)
	}
}

func (op *ReliableConnector) logState(address netip.AddrPort, attempt int, state ConnectState, err error) {
	op.Logger.Info(
		"connectState",
		slog.Int("attempt", attempt),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("remoteAddr", address.String()),
		slog.String("state", string(state)),
		slog.Time("t", op.TimeNow()),
	)
}

func (op *ReliableConnector) logConnectStart(address string, attempt int, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Int("attempt", attempt),
		slog.Time("deadline", deadline),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (op *ReliableConnector) logConnectDone(
	address string, attempt int, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Int("attempt", attempt),
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
