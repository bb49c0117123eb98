// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/safeconn"
	"github.com/miekg/dns"
)

// DefaultDNSTimeout bounds a single [*DNSOverUDPResolver] lookup.
const DefaultDNSTimeout = 5 * time.Second

// errUnsupportedNetwork is returned by [*DNSOverUDPResolver] for networks other than ip4.
var errUnsupportedNetwork = errors.New("loanwire: DNS-over-UDP resolver only supports ip4")

// NewDNSOverUDPResolver returns a [*DNSOverUDPResolver] querying the given server.
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The server argument is the DNS server endpoint (e.g., 8.8.8.8:53).
//
// The logger argument is the [SLogger] to use for structured logging.
func NewDNSOverUDPResolver(cfg *Config, server netip.AddrPort, logger SLogger) *DNSOverUDPResolver {
	return &DNSOverUDPResolver{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Server:        server,
		Timeout:       DefaultDNSTimeout,
		TimeNow:       cfg.TimeNow,
	}
}

// DNSOverUDPResolver is a [Resolver] sending A queries to an explicit
// DNS server over UDP instead of using the system resolver.
//
// Each lookup dials a fresh UDP socket, performs one exchange, and closes it.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [LookupNetIP].
type DNSOverUDPResolver struct {
	// Dialer creates the UDP socket.
	//
	// Set by [NewDNSOverUDPResolver] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewDNSOverUDPResolver] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewDNSOverUDPResolver] to the user-provided logger.
	Logger SLogger

	// Server is the DNS server endpoint.
	//
	// Set by [NewDNSOverUDPResolver] to the user-provided value.
	Server netip.AddrPort

	// Timeout bounds each lookup.
	//
	// Set by [NewDNSOverUDPResolver] to [DefaultDNSTimeout].
	Timeout time.Duration

	// TimeNow is the function to get the current time.
	//
	// Set by [NewDNSOverUDPResolver] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Resolver = &DNSOverUDPResolver{}

// LookupNetIP implements [Resolver].
func (r *DNSOverUDPResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if network != "ip4" {
		return nil, errUnsupportedNetwork
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	conn, err := r.Dialer.DialContext(ctx, "udp", r.Server.String())
	if err != nil {
		return nil, err
	}
	stop := closeOnDone(ctx, conn)
	defer func() {
		stop()
		conn.Close()
	}()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	resp, err := r.exchange(ctx, conn, dnscodec.NewQuery(host, dns.TypeA))
	if err != nil {
		return nil, err
	}
	records, err := resp.RecordsA()
	if err != nil {
		return nil, err
	}
	addrs := make([]netip.Addr, 0, len(records))
	for _, record := range records {
		addr, err := netip.ParseAddr(record)
		if err != nil {
			return nil, fmt.Errorf("loanwire: invalid A record %q: %w", record, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func (r *DNSOverUDPResolver) exchange(
	ctx context.Context, conn net.Conn, query *dnscodec.Query) (*dnscodec.Response, error) {
	t0 := r.TimeNow()
	deadline, _ := ctx.Deadline()
	lc := &dnsLogContext{
		ErrClassifier: r.ErrClassifier,
		LocalAddr:     safeconn.LocalAddr(conn),
		Logger:        r.Logger,
		Protocol:      safeconn.Network(conn),
		RemoteAddr:    safeconn.RemoteAddr(conn),
		TimeNow:       r.TimeNow,
	}

	// We never dial here: the exchange reuses the connection we
	// created above, hence the panicking dialer.
	txp := minest.NewDNSOverUDPTransport(dnsUnusedDialer{}, r.Server)
	txp.ObserveRawQuery = lc.queryObserver(t0)
	txp.ObserveRawResponse = lc.responseObserver(t0)

	lc.logStart(t0, deadline)
	resp, err := txp.ExchangeWithConn(ctx, conn, query)
	lc.logDone(t0, deadline, err)
	return resp, err
}

// dnsUnusedDialer is a [Dialer] that panics if DialContext is called.
type dnsUnusedDialer struct{}

var _ Dialer = dnsUnusedDialer{}

// DialContext implements [Dialer] and always panics.
func (dnsUnusedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	panic("loanwire: DNS transport must not dial; this is a programming error")
}

// dnsLogContext holds the logging state of a single DNS exchange.
type dnsLogContext struct {
	ErrClassifier ErrClassifier
	LocalAddr     string
	Logger        SLogger
	Protocol      string
	RemoteAddr    string
	TimeNow       func() time.Time
}

func (lc *dnsLogContext) logStart(t0 time.Time, deadline time.Time) {
	lc.Logger.Info(
		"dnsExchangeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t", t0),
	)
}

func (lc *dnsLogContext) logDone(t0 time.Time, deadline time.Time, err error) {
	lc.Logger.Info(
		"dnsExchangeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", lc.ErrClassifier.Classify(err)),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}

func (lc *dnsLogContext) queryObserver(t0 time.Time) func([]byte) {
	return func(rawQuery []byte) {
		lc.Logger.Debug(
			"dnsQuery",
			slog.Any("dnsRawQuery", rawQuery),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t", t0),
		)
	}
}

func (lc *dnsLogContext) responseObserver(t0 time.Time) func([]byte) {
	return func(rawResp []byte) {
		lc.Logger.Debug(
			"dnsResponse",
			slog.Any("dnsRawResponse", rawResp),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t0", t0),
			slog.Time("t", lc.TimeNow()),
		)
	}
}
