// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/bassosimone/loanwire"
	"github.com/bassosimone/loanwire/internal/loan"
	"github.com/spf13/cobra"
)

func newServerCommand(opts *rootOptions) *cobra.Command {
	var (
		continueOnError bool
		listen          string
		transport       string
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve loan queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("continue-on-error") {
				st.ContinueOnError = continueOnError
			}
			return runServer(cmd.Context(), st, logger, transport, listen)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&continueOnError, "continue-on-error", false, "keep serving after a failed TCP session")
	flags.StringVar(&listen, "listen", "", "address to listen on (default 0.0.0.0 and the configured port)")
	flags.StringVar(&transport, "transport", "tcp", "transport to use: tcp or udp")
	return cmd
}

// runServer serves until the context is done or a fatal error occurs.
func runServer(ctx context.Context, st settings, logger *slog.Logger, transport, listen string) error {
	cfg := st.Config
	if listen == "" {
		listen = net.JoinHostPort("0.0.0.0", strconv.Itoa(int(cfg.Port)))
	}

	var err error
	switch transport {
	case "tcp":
		var ln net.Listener
		if ln, err = loanwire.Listen(ctx, cfg, listen); err != nil {
			return err
		}
		srv := loanwire.NewStreamServer(cfg, loan.Handler(), logger)
		srv.ContinueOnError = st.ContinueOnError
		err = srv.Serve(ctx, ln)

	case "udp":
		var pc net.PacketConn
		if pc, err = loanwire.ListenPacket(ctx, listen); err != nil {
			return err
		}
		srv := loanwire.NewDatagramServer(cfg, loan.Handler(), logger)
		err = srv.Serve(ctx, pc)

	default:
		return fmt.Errorf("unknown transport %q", transport)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
