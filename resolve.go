// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"
)

// Resolver abstracts the [*net.Resolver] behavior.
//
// By making [*ResolveFunc] depend on an abstract implementation we
// allow for unit testing and for using [*DNSOverUDPResolver].
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// NewResolveFunc returns a new [*ResolveFunc] using [net.DefaultResolver].
//
// The cfg argument contains the common configuration for loanwire operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewResolveFunc(cfg *Config, logger SLogger) *ResolveFunc {
	return &ResolveFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Port:          cfg.Port,
		Resolver:      net.DefaultResolver,
		TimeNow:       cfg.TimeNow,
	}
}

// ResolveFunc maps a hostname or a literal IPv4 address to an endpoint.
//
// Literal addresses are used as is. Names are resolved using the
// [Resolver] and the first IPv4 address wins. There is no retry: a
// failure returns an error wrapping [ErrResolution].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ResolveFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewResolveFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewResolveFunc] to the user-provided logger.
	Logger SLogger

	// Port is joined to the resolved address.
	//
	// Set by [NewResolveFunc] from [Config.Port].
	Port uint16

	// Resolver resolves names.
	//
	// Set by [NewResolveFunc] to [net.DefaultResolver].
	Resolver Resolver

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewResolveFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[string, netip.AddrPort] = &ResolveFunc{}

// Call resolves the given host to an IPv4 [netip.AddrPort].
func (op *ResolveFunc) Call(ctx context.Context, host string) (netip.AddrPort, error) {
	t0 := op.TimeNow()
	op.Logger.Info("resolveStart", slog.String("host", host), slog.Time("t", t0))
	addr, err := op.resolve(ctx, host)
	var endpoint netip.AddrPort
	if err == nil {
		endpoint = netip.AddrPortFrom(addr, op.Port)
	}
	op.Logger.Info(
		"resolveDone",
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("host", host),
		slog.String("resolvedAddr", addrOrEmpty(addr, err)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	return endpoint, err
}

func (op *ResolveFunc) resolve(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Unmap().Is4() {
			return netip.Addr{}, fmt.Errorf("%w: %s: not an IPv4 address", ErrResolution, host)
		}
		return addr.Unmap(), nil
	}
	addrs, err := op.Resolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %w", ErrResolution, host, err)
	}
	for _, addr := range addrs {
		if addr.Unmap().Is4() {
			return addr.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s: no IPv4 addresses", ErrResolution, host)
}

func addrOrEmpty(addr netip.Addr, err error) string {
	if err != nil {
		return ""
	}
	return addr.String()
}
