package webhook

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

type fakeResolver struct {
	addrs map[string][]string
	err   error
	block bool // block until the context is cancelled
}

func (f *fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	ips, ok := f.addrs[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	var out []net.IPAddr
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

func TestGuardAllowsAllPublicAddresses(t *testing.T) {
	g := NewGuard(&fakeResolver{addrs: map[string][]string{
		"hooks.example.com": {"93.184.216.34", "2606:2800:220:1::1"},
	}}, time.Second)

	v := g.Check(context.Background(), "hooks.example.com")
	if !v.Valid {
		t.Errorf("expected valid, got %q", v.Reason)
	}
}

// One private record among public ones rejects the whole hostname: the
// resolver may hand the private address to the dialer on the next query.
func TestGuardRejectsMixedResolution(t *testing.T) {
	g := NewGuard(&fakeResolver{addrs: map[string][]string{
		"rebind.example.com": {"93.184.216.34", "10.0.0.7"},
	}}, time.Second)

	v := g.Check(context.Background(), "rebind.example.com")
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if v.Reason != "Webhook destination resolves to a blocked address" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
	if v.Timeout {
		t.Error("policy rejection must not be marked as a timeout")
	}
}

func TestGuardRejectsMetadataResolution(t *testing.T) {
	g := NewGuard(&fakeResolver{addrs: map[string][]string{
		"sneaky.example.com": {"169.254.169.254"},
	}}, time.Second)

	if v := g.Check(context.Background(), "sneaky.example.com"); v.Valid {
		t.Error("metadata address must be rejected")
	}
}

func TestGuardRejectsUnresolvableHost(t *testing.T) {
	g := NewGuard(&fakeResolver{}, time.Second)

	v := g.Check(context.Background(), "nxdomain.example.com")
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if v.Reason != "Unable to resolve webhook destination" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
	if v.Timeout {
		t.Error("NXDOMAIN is not a timeout")
	}
}

func TestGuardMarksResolverTimeout(t *testing.T) {
	g := NewGuard(&fakeResolver{block: true}, 20*time.Millisecond)

	v := g.Check(context.Background(), "slow.example.com")
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if !v.Timeout {
		t.Error("expected timeout flag on resolver deadline")
	}
}

func TestGuardRejectsEmptyResolution(t *testing.T) {
	g := NewGuard(&fakeResolver{addrs: map[string][]string{
		"empty.example.com": {},
	}}, time.Second)

	if v := g.Check(context.Background(), "empty.example.com"); v.Valid {
		t.Error("empty address list must be rejected")
	}
}

func TestGuardClassifiesLiteralIPWithoutLookup(t *testing.T) {
	// A resolver that always errors proves no lookup happens.
	g := NewGuard(&fakeResolver{err: errors.New("must not be called")}, time.Second)

	if v := g.Check(context.Background(), "93.184.216.34"); !v.Valid {
		t.Errorf("public literal should pass, got %q", v.Reason)
	}
	if v := g.Check(context.Background(), "10.0.0.1"); v.Valid {
		t.Error("private literal must be rejected")
	}
	if v := g.Check(context.Background(), "[::1]"); v.Valid {
		t.Error("bracketed loopback literal must be rejected")
	}
	if v := g.Check(context.Background(), "fe80::1%eth0"); v.Valid {
		t.Error("zoned literal must be rejected")
	}
}
