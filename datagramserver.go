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
)

// NewDatagramServer returns a new [*DatagramServer].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The handler argument computes the response to each valid request.
//
// The logger argument is the [SLogger] to use for structured logging.
//
// This function panics if handler is nil.
func NewDatagramServer(cfg *Config, handler Handler, logger SLogger) *DatagramServer {
	runtimex.Assert(handler != nil)
	return &DatagramServer{
		ErrClassifier:  cfg.ErrClassifier,
		Handler:        handler,
		Logger:         logger,
		MaxMessageSize: cfg.MaxMessageSize,
		TimeNow:        cfg.TimeNow,
	}
}

// DatagramServer answers datagram requests one at a time.
//
// Each valid datagram gets exactly one response wrapped with [WrapAck] and
// sent back to its source. The server never waits for that response to be
// confirmed: retransmission is the client's job, and a retransmitted
// request is simply served again. Empty, oversized and invalid datagrams
// are logged and ignored.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Serve].
type DatagramServer struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewDatagramServer] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Handler computes the responses.
	//
	// Set by [NewDatagramServer] to the user-provided handler.
	Handler Handler

	// Logger is the [SLogger] to use.
	//
	// Set by [NewDatagramServer] to the user-provided logger.
	Logger SLogger

	// MaxMessageSize bounds each received datagram.
	//
	// Set by [NewDatagramServer] from [Config.MaxMessageSize].
	MaxMessageSize int

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewDatagramServer] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Serve reads and answers datagrams until the context is done or the
// packet conn is closed. The packet conn is closed when Serve returns.
//
// When the context is done, Serve returns the context error; when the
// packet conn is closed by someone else, it returns nil.
func (s *DatagramServer) Serve(ctx context.Context, pc net.PacketConn) error {
	defer pc.Close()
	stop := closeOnDone(ctx, pc)
	defer stop()

	s.Logger.Info(
		"serverListening",
		slog.String("localAddr", pc.LocalAddr().String()),
		slog.String("protocol", pc.LocalAddr().Network()),
	)
	buf := make([]byte, s.MaxMessageSize+1)
	for {
		count, addr, err := pc.ReadFrom(buf)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			s.Logger.Warn(
				"datagramReceiveFailed",
				slog.Any("err", err),
				slog.String("errClass", s.ErrClassifier.Classify(err)),
			)
			continue
		}
		s.dispatch(ctx, pc, addr, buf[:count])
	}
}

// dispatch answers a single datagram, if valid.
func (s *DatagramServer) dispatch(ctx context.Context, pc net.PacketConn, addr net.Addr, datagram []byte) {
	t0 := s.TimeNow()
	spanID := NewSpanID()
	outcome, count, err := s.respond(ctx, pc, addr, datagram)
	args := []any{
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.Int("ioBytesCount", count),
		slog.String("localAddr", pc.LocalAddr().String()),
		slog.String("outcome", outcome),
		slog.String("protocol", pc.LocalAddr().Network()),
		slog.String("remoteAddr", addr.String()),
		slog.String("spanID", spanID),
		slog.Time("t0", t0),
		slog.Time("t", s.TimeNow()),
	}
	if outcome != "responded" {
		s.Logger.Warn("datagramDone", args...)
		return
	}
	s.Logger.Info("datagramDone", args...)
}

// respond returns the outcome, the bytes sent, and the error, if any.
//
// The outcome is "responded", "ignored" or "failed".
func (s *DatagramServer) respond(
	ctx context.Context, pc net.PacketConn, addr net.Addr, datagram []byte) (string, int, error) {
	switch {
	case len(datagram) <= 0:
		return "ignored", 0, fmt.Errorf("%w: empty datagram", ErrInvalidRequest)
	case len(datagram) > s.MaxMessageSize:
		return "ignored", 0, ErrMessageTooLarge
	}

	response, err := s.Handler.Handle(ctx, string(datagram))
	if err != nil {
		return "ignored", 0, err
	}

	count, err := pc.WriteTo(WrapAck(response), addr)
	if err != nil {
		return "failed", count, err
	}
	return "responded", count, nil
}
