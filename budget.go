// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"time"

	"github.com/bassosimone/runtimex"
)

// DefaultMaxAttempts is the default retry cap.
const DefaultMaxAttempts = 10

// DefaultRetryDelay is the default fixed delay between attempts.
const DefaultRetryDelay = time.Second

// RetryBudget tracks the attempts made by one retrying operation.
//
// A RetryBudget is a value: [RetryBudget.Next] returns an updated copy and
// the receiver is never modified. Each logical operation owns its budget;
// budgets are never shared across operations.
type RetryBudget struct {
	// Attempts is the number of attempts made so far.
	Attempts int

	// MaxAttempts is the maximum number of attempts.
	MaxAttempts int

	// Delay is the fixed delay between two attempts.
	Delay time.Duration
}

// NewRetryBudget returns a [RetryBudget] with no attempts made.
//
// This function panics if maxAttempts or delay are not positive.
func NewRetryBudget(maxAttempts int, delay time.Duration) RetryBudget {
	runtimex.Assert(maxAttempts > 0)
	runtimex.Assert(delay > 0)
	return RetryBudget{MaxAttempts: maxAttempts, Delay: delay}
}

// Exhausted returns whether no attempts are left.
func (b RetryBudget) Exhausted() bool {
	return b.Attempts >= b.MaxAttempts
}

// Next returns a copy of the budget recording one more attempt.
func (b RetryBudget) Next() RetryBudget {
	b.Attempts++
	return b
}

// Remaining returns the number of attempts left.
func (b RetryBudget) Remaining() int {
	return max(b.MaxAttempts-b.Attempts, 0)
}
