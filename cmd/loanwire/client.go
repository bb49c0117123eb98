// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/bassosimone/loanwire"
	"github.com/bassosimone/loanwire/internal/loan"
	"github.com/spf13/cobra"
)

func newClientCommand(opts *rootOptions) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:     "client <address> <amount> <years> <rate>",
		Short:   "Send a loan query and print the payment report",
		Example: "  loanwire client 127.0.0.1 150,000 30 4.69%\n  loanwire client --transport udp localhost 150000 30 4.69",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runClient(cmd.Context(), cmd.OutOrStdout(), st, logger, transport, args)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "tcp", "transport to use: tcp or udp")
	return cmd
}

// runClient validates the query, sends it to the server and writes
// the report to w.
func runClient(
	ctx context.Context, w io.Writer, st settings, logger *slog.Logger, transport string, args []string) error {
	address, fields := args[0], args[1:]
	if _, err := loan.NewRequest(fields[0], fields[1], fields[2]); err != nil {
		return err
	}
	body := []byte(strings.Join(fields, " "))

	cfg := st.Config
	logger = logger.With(slog.String("spanID", loanwire.NewSpanID()))
	resolve := loanwire.NewResolveFunc(cfg, logger)
	if !st.usesSystemResolver() {
		resolve.Resolver = loanwire.NewDNSOverUDPResolver(cfg, st.DNSServer, logger)
	}

	var exchange loanwire.Func[netip.AddrPort, string]
	switch transport {
	case "tcp":
		exchange = loanwire.Compose2(
			loanwire.NewReliableConnector(cfg, logger),
			loanwire.NewSessionFunc(loanwire.NewReliableExchanger(cfg, logger), body),
		)
	case "udp":
		exchange = loanwire.Compose2(
			loanwire.NewDatagramDialFunc(cfg.Dialer),
			loanwire.NewDatagramFunc(loanwire.NewUnreliableExchanger(cfg, logger), body),
		)
	default:
		return fmt.Errorf("unknown transport %q", transport)
	}

	endpoint, err := resolve.Call(ctx, address)
	if err != nil {
		return err
	}
	logger.Info("serverAddress", slog.String("address", describeEndpoint(address, endpoint)))

	report, err := exchange.Call(ctx, endpoint)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimPrefix(report, "\n"))
	return err
}

// describeEndpoint returns "host -> ip" when the user-provided address
// differs from the resolved one, and just the ip otherwise.
func describeEndpoint(address string, endpoint netip.AddrPort) string {
	resolved := endpoint.Addr().String()
	if address == resolved {
		return resolved
	}
	return address + " -> " + resolved
}
