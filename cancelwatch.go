// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"io"
)

// closeOnDone arranges for c to be closed when ctx is done (cancelled or
// deadline exceeded). Blocking I/O on c then fails immediately, which
// gives responsive ^C handling to loops that otherwise wait forever.
//
// The returned function unregisters the watcher and reports whether it
// did so before the watcher ran. Callers must invoke it once they are done
// with c, so that no goroutine outlives the operation.
//
// Closing an already-closed conn or listener returns [net.ErrClosed], so
// the watcher is safe to combine with an explicit Close.
func closeOnDone(ctx context.Context, c io.Closer) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		c.Close()
	})
}
