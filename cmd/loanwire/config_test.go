// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bassosimone/loanwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loanwire.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsDefaults(t *testing.T) {
	st, err := loadSettings("")

	require.NoError(t, err)
	assert.Equal(t, uint16(loanwire.DefaultPort), st.Config.Port)
	assert.Equal(t, loanwire.DefaultMaxAttempts, st.Config.MaxAttempts)
	assert.Equal(t, loanwire.DefaultRetryDelay, st.Config.RetryDelay)
	assert.Equal(t, loanwire.DefaultMaxMessageSize, st.Config.MaxMessageSize)
	assert.Equal(t, loanwire.DefaultBacklog, st.Config.Backlog)
	assert.False(t, st.ContinueOnError)
	assert.Equal(t, "info", st.LogLevel)
	assert.Equal(t, "text", st.LogFormat)
	assert.True(t, st.usesSystemResolver())
}

func TestLoadSettingsOverrides(t *testing.T) {
	path := writeConfig(t, `
port = 14000
max_attempts = 3
retry_delay = "250ms"
max_message_size = 512
backlog = 16
continue_on_error = true
log_level = "debug"
log_format = "json"
dns_server = "8.8.8.8"
`)

	st, err := loadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, uint16(14000), st.Config.Port)
	assert.Equal(t, 3, st.Config.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, st.Config.RetryDelay)
	assert.Equal(t, 512, st.Config.MaxMessageSize)
	assert.Equal(t, 16, st.Config.Backlog)
	assert.True(t, st.ContinueOnError)
	assert.Equal(t, "debug", st.LogLevel)
	assert.Equal(t, "json", st.LogFormat)
	assert.Equal(t, netip.MustParseAddrPort("8.8.8.8:53"), st.DNSServer)
}

// Keys missing from the file keep their defaults.
func TestLoadSettingsPartial(t *testing.T) {
	path := writeConfig(t, "max_attempts = 5\n")

	st, err := loadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, 5, st.Config.MaxAttempts)
	assert.Equal(t, loanwire.DefaultRetryDelay, st.Config.RetryDelay)
	assert.Equal(t, uint16(loanwire.DefaultPort), st.Config.Port)
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// content is the configuration file content.
		content string
	}{
		{name: "syntax error", content: "port = "},
		{name: "unknown key", content: "retries = 3\n"},
		{name: "port out of range", content: "port = 70000\n"},
		{name: "zero attempts", content: "max_attempts = 0\n"},
		{name: "bad delay", content: "retry_delay = \"soon\"\n"},
		{name: "negative delay", content: "retry_delay = \"-1s\"\n"},
		{name: "zero message size", content: "max_message_size = 0\n"},
		{name: "zero backlog", content: "backlog = 0\n"},
		{name: "bad dns server", content: "dns_server = \"dns.google\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := loadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestParseDNSServer(t *testing.T) {
	got, err := parseDNSServer("1.1.1.1:5353")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("1.1.1.1:5353"), got)

	got, err = parseDNSServer(" 9.9.9.9 ")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("9.9.9.9:53"), got)
}
