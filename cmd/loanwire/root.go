// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by all the subcommands.
type rootOptions struct {
	configPath string
	dnsServer  string
	logFormat  string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "loanwire [command]",
		Short:         "Loan payment reports over TCP or UDP",
		Long:          "loanwire sends loan queries to a loanwire server and prints the payment report.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path of the TOML configuration file")
	flags.StringVar(&opts.dnsServer, "dns-server", "", "resolve names using this DNS server instead of the system resolver")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(newClientCommand(opts), newServerCommand(opts))
	return cmd
}

// load merges the config file and the flags and builds the logger.
func (opts *rootOptions) load(cmd *cobra.Command) (settings, *slog.Logger, error) {
	st, err := loadSettings(opts.configPath)
	if err != nil {
		return settings{}, nil, err
	}
	if opts.logLevel != "" {
		st.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		st.LogFormat = opts.logFormat
	}
	if opts.dnsServer != "" {
		if st.DNSServer, err = parseDNSServer(opts.dnsServer); err != nil {
			return settings{}, nil, err
		}
	}
	logger, err := newLogger(cmd.ErrOrStderr(), st.LogLevel, st.LogFormat)
	if err != nil {
		return settings{}, nil, fmt.Errorf("configure logging: %w", err)
	}
	return st, logger, nil
}

// usesSystemResolver returns whether no DNS server was configured.
func (st settings) usesSystemResolver() bool {
	return !st.DNSServer.IsValid()
}
