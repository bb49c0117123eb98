// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import "errors"

// Errors returned by loanwire operations.
//
// Operations wrap these sentinels together with the underlying cause, so
// callers can use [errors.Is] for both the category and the OS error.
var (
	// ErrResolution indicates that an address could not be mapped to an endpoint.
	ErrResolution = errors.New("loanwire: cannot resolve address")

	// ErrConnectionTimeout indicates that a handshake did not complete in time.
	ErrConnectionTimeout = errors.New("loanwire: connection timeout")

	// ErrConnectionRefused indicates that the peer refused the connection.
	ErrConnectionRefused = errors.New("loanwire: connection refused")

	// ErrConnectionOther indicates any other connect failure.
	ErrConnectionOther = errors.New("loanwire: connection failed")

	// ErrConnectionExhausted indicates that all connect attempts failed.
	ErrConnectionExhausted = errors.New("loanwire: connection attempts exhausted")

	// ErrPartialSend indicates that a stream accepted fewer bytes than requested.
	ErrPartialSend = errors.New("loanwire: partial send")

	// ErrSend indicates that no bytes could be sent.
	ErrSend = errors.New("loanwire: send failed")

	// ErrPeerClosed indicates that the peer closed the session before sending.
	ErrPeerClosed = errors.New("loanwire: peer closed the session")

	// ErrReceive indicates that a receive failed.
	ErrReceive = errors.New("loanwire: receive failed")

	// ErrAckTimeout indicates that no datagram arrived before the deadline.
	ErrAckTimeout = errors.New("loanwire: acknowledgment timeout")

	// ErrAckFramingIncomplete indicates a datagram lacking one or both markers.
	ErrAckFramingIncomplete = errors.New("loanwire: acknowledgment framing incomplete")

	// ErrAckExhausted indicates that all send/wait cycles failed.
	ErrAckExhausted = errors.New("loanwire: acknowledgment attempts exhausted")

	// ErrMessageTooLarge indicates a message exceeding the maximum message size.
	ErrMessageTooLarge = errors.New("loanwire: message too large")

	// ErrInvalidRequest indicates a request rejected by the [Handler].
	ErrInvalidRequest = errors.New("loanwire: invalid request")
)
