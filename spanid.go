// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is one client run or one server session: a sequence of
// operations that succeeds or fails as a whole. Attach it to a logger
// with [*slog.Logger.With] so that all the events of a span correlate.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
