// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the message of each captured record.
func recordMessages(records []slog.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Message)
	}
	return out
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// fakeSleeper records the requested sleeps without actually sleeping.
type fakeSleeper struct {
	sleeps []time.Duration
}

// Sleep has the same signature as [SleepContext].
func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

// newTestConfig returns a [*Config] whose sleeps are recorded by the
// returned [*fakeSleeper] instead of being performed.
func newTestConfig() (*Config, *fakeSleeper) {
	cfg := NewConfig()
	sleeper := &fakeSleeper{}
	cfg.Sleep = sleeper.Sleep
	return cfg, sleeper
}
