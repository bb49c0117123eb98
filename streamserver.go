// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// NewStreamServer returns a new [*StreamServer].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The handler argument computes the response to each valid request.
//
// The logger argument is the [SLogger] to use for structured logging.
//
// This function panics if handler is nil.
func NewStreamServer(cfg *Config, handler Handler, logger SLogger) *StreamServer {
	runtimex.Assert(handler != nil)
	return &StreamServer{
		ContinueOnError: false,
		ErrClassifier:   cfg.ErrClassifier,
		Exchanger:       NewReliableExchanger(cfg, logger),
		Handler:         handler,
		Logger:          logger,
		TimeNow:         cfg.TimeNow,
	}
}

// StreamServer serves one session at a time over a TCP listener.
//
// Each session carries exactly one request and at most one response, and
// the server always closes it afterwards. An invalid request closes the
// session without a response and the loop continues. By default, a session
// delivering no bytes or a failure to send the response stops the server;
// set ContinueOnError to log these failures and keep serving instead.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Serve].
type StreamServer struct {
	// ContinueOnError keeps the server running after session failures.
	//
	// Set by [NewStreamServer] to false.
	ContinueOnError bool

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewStreamServer] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Exchanger performs the per-session receive and send.
	//
	// Set by [NewStreamServer] using [NewReliableExchanger].
	Exchanger *ReliableExchanger

	// Handler computes the responses.
	//
	// Set by [NewStreamServer] to the user-provided handler.
	Handler Handler

	// Logger is the [SLogger] to use.
	//
	// Set by [NewStreamServer] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewStreamServer] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Serve accepts and serves sessions until the context is done or a
// fatal error occurs. The listener is closed when Serve returns.
//
// When the context is done, Serve returns the context error.
func (s *StreamServer) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := closeOnDone(ctx, ln)
	defer stop()

	s.Logger.Info(
		"serverListening",
		slog.String("localAddr", ln.Addr().String()),
		slog.String("protocol", ln.Addr().Network()),
	)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Logger.Info(
				"serverAcceptFailed",
				slog.Any("err", err),
				slog.String("errClass", s.ErrClassifier.Classify(err)),
			)
			return err
		}
		if err := s.serveSession(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !s.ContinueOnError {
				return err
			}
		}
	}
}

// serveSession handles one session and returns only fatal errors.
func (s *StreamServer) serveSession(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := closeOnDone(ctx, conn)
	defer stop()

	t0 := s.TimeNow()
	spanID := NewSpanID()
	s.Logger.Info(
		"sessionStart",
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.String("spanID", spanID),
		slog.Time("t", t0),
	)
	outcome, err := s.exchange(ctx, conn)
	s.Logger.Info(
		"sessionDone",
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("outcome", outcome),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.String("spanID", spanID),
		slog.Time("t0", t0),
		slog.Time("t", s.TimeNow()),
	)
	if outcome == "rejected" {
		return nil
	}
	return err
}

// exchange receives the request and sends the response, if any.
//
// The returned outcome is "responded", "rejected" or "failed".
func (s *StreamServer) exchange(ctx context.Context, conn net.Conn) (string, error) {
	request, err := s.Exchanger.AwaitResponse(ctx, conn)
	switch {
	case errors.Is(err, ErrMessageTooLarge):
		return "rejected", err
	case err != nil:
		return "failed", err
	}

	response, err := s.Handler.Handle(ctx, request)
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return "rejected", err
	}

	if err := s.Exchanger.Send(ctx, conn, []byte(response)); err != nil {
		return "failed", err
	}
	return "responded", nil
}
