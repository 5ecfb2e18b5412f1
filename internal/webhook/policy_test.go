package webhook

import (
	"net/netip"
	"testing"
)

func TestValidateURLAcceptsPublicHTTPS(t *testing.T) {
	v := ValidateURL("https://hooks.example.com/run")
	if !v.Valid {
		t.Errorf("expected valid, got reason %q", v.Reason)
	}
}

func TestValidateURLRejectsHTTP(t *testing.T) {
	v := ValidateURL("http://hooks.example.com/run")
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if v.Reason != "Webhook URL must use HTTPS" {
		t.Errorf("unexpected reason %q", v.Reason)
	}
}

func TestValidateURLRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "not a url", "https://", "://missing"} {
		if v := ValidateURL(raw); v.Valid {
			t.Errorf("%q: expected invalid", raw)
		}
	}
}

func TestValidateURLRejectsLoopbackSpellings(t *testing.T) {
	cases := []string{
		"https://localhost/hook",
		"https://localhost:8443/hook",
		"https://127.0.0.1/hook",
		"https://0.0.0.0/hook",
		"https://[::1]/hook",
	}
	for _, raw := range cases {
		v := ValidateURL(raw)
		if v.Valid {
			t.Errorf("%q: expected invalid", raw)
			continue
		}
		if v.Reason != "Localhost URLs are not allowed" {
			t.Errorf("%q: unexpected reason %q", raw, v.Reason)
		}
	}
}

func TestValidateURLRejectsPrivateRanges(t *testing.T) {
	cases := []string{
		"https://10.0.0.5/hook",
		"https://192.168.1.1/hook",
		"https://172.16.0.1/hook",
		"https://172.31.255.254/hook",
	}
	for _, raw := range cases {
		v := ValidateURL(raw)
		if v.Valid {
			t.Errorf("%q: expected invalid", raw)
			continue
		}
		if v.Reason != "Private IP addresses are not allowed" {
			t.Errorf("%q: unexpected reason %q", raw, v.Reason)
		}
	}
}

// The 172 check is a numeric range, not a prefix match: 172.15 and
// 172.32 are outside RFC 1918.
func TestValidateURL172Boundaries(t *testing.T) {
	if v := ValidateURL("https://172.15.0.1/hook"); !v.Valid {
		t.Errorf("172.15 should pass static policy, got %q", v.Reason)
	}
	if v := ValidateURL("https://172.32.0.1/hook"); !v.Valid {
		t.Errorf("172.32 should pass static policy, got %q", v.Reason)
	}
	if v := ValidateURL("https://172.16.0.1/hook"); v.Valid {
		t.Error("172.16 should be rejected")
	}
	if v := ValidateURL("https://172.31.0.1/hook"); v.Valid {
		t.Error("172.31 should be rejected")
	}
}

func TestValidateURLRejectsMetadataEndpoints(t *testing.T) {
	cases := []string{
		"https://169.254.169.254/latest/meta-data",
		"https://169.254.0.99/hook",
		"https://metadata.google.internal/computeMetadata",
		"https://metadata.goog/hook",
	}
	for _, raw := range cases {
		v := ValidateURL(raw)
		if v.Valid {
			t.Errorf("%q: expected invalid", raw)
			continue
		}
		if v.Reason != "Metadata/link-local addresses are not allowed" {
			t.Errorf("%q: unexpected reason %q", raw, v.Reason)
		}
	}
}

func TestValidateURLRejectsInternalSuffixes(t *testing.T) {
	cases := []string{
		"https://db.prod.internal/hook",
		"https://printer.local/hook",
		"https://svc.localhost/hook",
	}
	for _, raw := range cases {
		v := ValidateURL(raw)
		if v.Valid {
			t.Errorf("%q: expected invalid", raw)
			continue
		}
		if v.Reason != "Internal network addresses are not allowed" {
			t.Errorf("%q: unexpected reason %q", raw, v.Reason)
		}
	}
}

func TestValidateURLIsCaseInsensitive(t *testing.T) {
	if v := ValidateURL("https://LocalHost/hook"); v.Valid {
		t.Error("uppercase localhost should be rejected")
	}
	if v := ValidateURL("https://API.Example.COM/hook"); !v.Valid {
		t.Errorf("mixed-case public host should pass, got %q", v.Reason)
	}
}

func TestClassifyAddr(t *testing.T) {
	cases := []struct {
		addr string
		want Classification
	}{
		{"93.184.216.34", ClassPublic},
		{"2606:2800:220:1::1", ClassPublic},
		{"127.0.0.1", ClassLoopback},
		{"::1", ClassLoopback},
		{"10.1.2.3", ClassPrivateV4},
		{"192.168.0.10", ClassPrivateV4},
		{"172.16.5.5", ClassPrivateV4},
		{"169.254.169.254", ClassMetadata},
		{"169.254.1.1", ClassLinkLocal},
		{"fe80::1", ClassLinkLocal},
		{"fd00::1", ClassUniqueLocalV6},
		{"224.0.0.1", ClassMulticast},
		{"0.0.0.0", ClassUnspecified},
		{"::ffff:10.0.0.1", ClassPrivateV4}, // 4-in-6 mapped must unmap first
	}
	for _, tc := range cases {
		addr := netip.MustParseAddr(tc.addr)
		got := ClassifyAddr(addr)
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.addr, tc.want, got)
		}
	}
}

func TestClassificationBlocked(t *testing.T) {
	if ClassPublic.Blocked() {
		t.Error("public addresses must be dialable")
	}
	for _, c := range []Classification{
		ClassLoopback, ClassPrivateV4, ClassLinkLocal,
		ClassUniqueLocalV6, ClassMulticast, ClassMetadata, ClassUnspecified,
	} {
		if !c.Blocked() {
			t.Errorf("%s should be blocked", c)
		}
	}
}
