package webhook

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"
)

// Resolver is the subset of net.Resolver the guard needs. Injectable so
// tests can control what a hostname resolves to.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard re-checks a hostname's resolved addresses against the address
// policy immediately before a connection is opened. Static URL validation
// cannot catch a hostname that was publicly resolvable at authoring time
// and later repointed at an internal address (DNS rebinding), so this
// check is mandatory exactly once per dispatch attempt.
type Guard struct {
	resolver Resolver
	timeout  time.Duration
}

// NewGuard builds a Guard. A nil resolver falls back to net.DefaultResolver;
// a zero timeout defaults to 5 seconds so a hung resolver cannot stall an
// invocation for the full dispatch window.
func NewGuard(resolver Resolver, timeout time.Duration) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Guard{resolver: resolver, timeout: timeout}
}

// Check classifies a hostname's addresses. Literal IPs are classified
// directly without a lookup. For names, every resolved address must be
// public: an attacker can mix public and private records and the private
// one may win the connection on a later call, so any blocked address
// rejects the whole hostname.
func (g *Guard) Check(ctx context.Context, hostname string) Verdict {
	host := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]"))

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" {
			return deny("Zoned IP addresses are not allowed")
		}
		if c := ClassifyAddr(addr); c.Blocked() {
			return deny("Webhook destination resolves to a blocked address")
		}
		return allow()
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		// NXDOMAIN, resolver timeout, network error: never pass through.
		v := deny("Unable to resolve webhook destination")
		v.Timeout = errors.Is(ctx.Err(), context.DeadlineExceeded)
		return v
	}

	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok {
			return deny("Webhook destination resolves to a blocked address")
		}
		if c := ClassifyAddr(addr); c.Blocked() {
			return deny("Webhook destination resolves to a blocked address")
		}
	}
	return allow()
}
