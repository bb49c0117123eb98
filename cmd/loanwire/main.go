// SPDX-License-Identifier: GPL-3.0-or-later

// Command loanwire queries and serves loan payment reports over TCP or UDP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "loanwire: %v\n", err)
		stop()
		os.Exit(1)
	}
}
