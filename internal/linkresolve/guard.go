package linkresolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var (
	// ErrBlocked is returned when a host resolves to a non-public address.
	ErrBlocked = errors.New("linkresolve: blocked by ssrf policy")
	// ErrNoAddress is returned when a host resolves to nothing.
	ErrNoAddress = errors.New("linkresolve: no address for host")
)

// LookupFunc resolves a host name to its addresses.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// DialFunc opens a connection to an already vetted address.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// blockedAddr reports addresses that must never be fetched: loopback,
// link-local, private ranges, and the unspecified address.
func blockedAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() ||
		a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() ||
		a.IsInterfaceLocalMulticast() ||
		a.IsPrivate() ||
		a.IsUnspecified()
}

// guard resolves hosts and rejects any that map to a blocked address.
type guard struct {
	lookup LookupFunc
	dial   DialFunc
}

// check resolves host and returns its addresses when every one is public.
// A literal IP is checked without a lookup.
func (g guard) check(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	if a, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{a}
	} else {
		addrs, err = g.lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", host, err)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
	}
	for _, a := range addrs {
		if blockedAddr(a) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrBlocked, host, a)
		}
	}
	return addrs, nil
}

// dialContext is installed on the transport so every connection, including
// those opened for redirect hops, goes to a vetted IP and never to a name
// resolved a second time.
func (g guard) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	addrs, err := g.check(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, a := range addrs {
		conn, err := g.dial(ctx, network, net.JoinHostPort(a.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
