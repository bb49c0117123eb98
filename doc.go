// SPDX-License-Identifier: GPL-3.0-or-later

// Package loanwire implements a request/response exchange over a reliable
// (TCP) and a best-effort (UDP) transport, with bounded retries.
//
// # Core Abstraction
//
// Client-side operations implement a single interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// and are chained with [Compose2] and [Compose3]. A TCP client is:
//
//	pipeline := Compose3(
//		NewResolveFunc(cfg, logger),
//		NewReliableConnector(cfg, logger),
//		NewSessionFunc(NewReliableExchanger(cfg, logger), request),
//	)
//	report, err := pipeline.Call(ctx, "127.0.0.1")
//
// A UDP client replaces the last two stages with [NewDatagramDialFunc]
// and [NewDatagramFunc].
//
// # Available Primitives
//
// Client:
//   - [ResolveFunc]: maps a hostname or IPv4 literal to an endpoint, using
//     the system resolver or a [DNSOverUDPResolver]
//   - [ReliableConnector]: connects with a bounded handshake and whole-attempt retries
//   - [ReliableExchanger]: one send and one receive over a TCP session
//   - [UnreliableExchanger]: send/wait cycles until an acknowledged datagram arrives
//
// Server:
//   - [StreamServer]: sequential TCP sessions, see [Listen]
//   - [DatagramServer]: sequential datagrams, see [ListenPacket]
//   - [Handler]: computes the response to a request
//
// Framing and retries:
//   - [WrapAck] and [UnwrapAck]: the acknowledgment envelope used over UDP
//   - [RetryBudget]: attempt cap and fixed delay shared by both retry loops
//
// # Errors
//
// Operations return errors wrapping one of the sentinels in this package
// (e.g., [ErrConnectionExhausted], [ErrAckExhausted]) together with the
// underlying cause. Use [errors.Is] to check either.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled.
//
// Primitives emit span events (*Start/*Done pairs) sharing a common set of
// fields: localAddr, remoteAddr, protocol, and t (timestamp). Completion
// events additionally include t0, err, and errClass. The connector also
// emits a connectState event for each state transition. Per-I/O events
// are emitted at [slog.LevelDebug].
//
// Use [NewSpanID] to generate a time-ordered identifier for a client run and
// attach it with [*slog.Logger.With]. Servers assign one to each session.
//
// # Timeouts
//
// Handshakes and acknowledgment waits are bounded by [Config.RetryDelay].
// Receives over an established TCP session block until data arrives or the
// context is done: a done context closes the session, listener or packet
// conn, which interrupts any blocking I/O.
package loanwire
