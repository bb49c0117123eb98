// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"time"
)

// DefaultPort is the well-known port used by both transports.
const DefaultPort = 13000

// DefaultMaxMessageSize is the largest request or response, in bytes,
// that a single receive accepts.
const DefaultMaxMessageSize = 1024

// DefaultBacklog is the number of pending connections the reliable
// server allows before the kernel starts refusing them.
const DefaultBacklog = 5

// Config holds common configuration for loanwire operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Backlog is the listen backlog used by [Listen].
	//
	// Set by [NewConfig] to [DefaultBacklog].
	Backlog int

	// Dialer is used by [*ReliableConnector].
	//
	// Set by [NewConfig] to [*HandshakeDialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// MaxAttempts is the retry cap used to build a [RetryBudget].
	//
	// Set by [NewConfig] to [DefaultMaxAttempts].
	MaxAttempts int

	// MaxMessageSize bounds every single receive.
	//
	// Set by [NewConfig] to [DefaultMaxMessageSize].
	MaxMessageSize int

	// Port is the port joined to resolved addresses.
	//
	// Set by [NewConfig] to [DefaultPort].
	Port uint16

	// RetryDelay is the fixed delay used to build a [RetryBudget]. It also
	// bounds the handshake wait and the acknowledgment wait.
	//
	// Set by [NewConfig] to [DefaultRetryDelay].
	RetryDelay time.Duration

	// Sleep waits between retry attempts (configurable for testing).
	//
	// Set by [NewConfig] to [SleepContext].
	Sleep func(ctx context.Context, d time.Duration) error

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Backlog:        DefaultBacklog,
		Dialer:         NewHandshakeDialer(),
		ErrClassifier:  DefaultErrClassifier,
		MaxAttempts:    DefaultMaxAttempts,
		MaxMessageSize: DefaultMaxMessageSize,
		Port:           DefaultPort,
		RetryDelay:     DefaultRetryDelay,
		Sleep:          SleepContext,
		TimeNow:        time.Now,
	}
}

// NewRetryBudget returns a fresh [RetryBudget] using the configured
// attempt cap and delay.
func (c *Config) NewRetryBudget() RetryBudget {
	return NewRetryBudget(c.MaxAttempts, c.RetryDelay)
}

// SleepContext sleeps for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
