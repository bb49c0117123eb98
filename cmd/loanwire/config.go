// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bassosimone/loanwire"
)

// defaultDNSPort is used when dns_server omits the port.
const defaultDNSPort = 53

type fileConfig struct {
	Port            int    `toml:"port"`
	MaxAttempts     int    `toml:"max_attempts"`
	RetryDelay      string `toml:"retry_delay"`
	MaxMessageSize  int    `toml:"max_message_size"`
	Backlog         int    `toml:"backlog"`
	ContinueOnError bool   `toml:"continue_on_error"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	DNSServer       string `toml:"dns_server"`
}

// settings is the merged result of defaults, config file and flags.
type settings struct {
	Config          *loanwire.Config
	ContinueOnError bool
	LogLevel        string
	LogFormat       string

	// DNSServer is the zero value when using the system resolver.
	DNSServer netip.AddrPort
}

func defaultSettings() settings {
	return settings{
		Config:    loanwire.NewConfig(),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// loadSettings returns the defaults overridden by the TOML file at path,
// if path is not empty.
func loadSettings(path string) (settings, error) {
	st := defaultSettings()
	if path == "" {
		return st, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return settings{}, fmt.Errorf("parse port: %d is out of range", raw.Port)
		}
		st.Config.Port = uint16(raw.Port)
	}

	if meta.IsDefined("max_attempts") {
		if raw.MaxAttempts <= 0 {
			return settings{}, fmt.Errorf("parse max_attempts: must be positive")
		}
		st.Config.MaxAttempts = raw.MaxAttempts
	}

	if meta.IsDefined("retry_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RetryDelay))
		if err != nil {
			return settings{}, fmt.Errorf("parse retry_delay: %w", err)
		}
		if d <= 0 {
			return settings{}, fmt.Errorf("parse retry_delay: must be positive")
		}
		st.Config.RetryDelay = d
	}

	if meta.IsDefined("max_message_size") {
		if raw.MaxMessageSize <= 0 {
			return settings{}, fmt.Errorf("parse max_message_size: must be positive")
		}
		st.Config.MaxMessageSize = raw.MaxMessageSize
	}

	if meta.IsDefined("backlog") {
		if raw.Backlog <= 0 {
			return settings{}, fmt.Errorf("parse backlog: must be positive")
		}
		st.Config.Backlog = raw.Backlog
	}

	if meta.IsDefined("continue_on_error") {
		st.ContinueOnError = raw.ContinueOnError
	}

	if meta.IsDefined("log_level") {
		st.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("log_format") {
		st.LogFormat = strings.TrimSpace(raw.LogFormat)
	}

	if meta.IsDefined("dns_server") {
		server, err := parseDNSServer(raw.DNSServer)
		if err != nil {
			return settings{}, err
		}
		st.DNSServer = server
	}

	return st, nil
}

// parseDNSServer parses "ip" or "ip:port" into an endpoint.
func parseDNSServer(value string) (netip.AddrPort, error) {
	value = strings.TrimSpace(value)
	if endpoint, err := netip.ParseAddrPort(value); err == nil {
		return endpoint, nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parse dns_server: %q is not an address", value)
	}
	return netip.AddrPortFrom(addr, defaultDNSPort), nil
}
