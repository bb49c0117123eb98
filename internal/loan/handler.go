// SPDX-License-Identifier: GPL-3.0-or-later

package loan

import (
	"context"

	"github.com/bassosimone/loanwire"
)

// Handler returns a [loanwire.Handler] answering loan queries with
// their payment report.
func Handler() loanwire.Handler {
	return loanwire.HandlerFunc(func(ctx context.Context, body string) (string, error) {
		req, err := ParseRequest(body)
		if err != nil {
			return "", err
		}
		return Report(req), nil
	})
}
