package webhook

import (
	"net/netip"
	"net/url"
	"strings"
)

// Verdict is the result of a policy or guard check.
type Verdict struct {
	Valid  bool
	Reason string
	// Timeout marks a denial caused by the resolver exceeding its bound
	// rather than by the address policy itself.
	Timeout bool
}

func allow() Verdict             { return Verdict{Valid: true} }
func deny(reason string) Verdict { return Verdict{Reason: reason} }

// Hostnames rejected outright before any pattern matching. Covers the
// loopback spellings plus the well-known cloud metadata names.
var blockedHosts = map[string]bool{
	"localhost":                true,
	"127.0.0.1":                true,
	"0.0.0.0":                  true,
	"::1":                      true,
	"[::1]":                    true,
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata.goog":            true,
}

// ValidateURL applies the static webhook URL policy: first match wins,
// no network access. It runs advisorily when a tool is authored and
// authoritatively immediately before every dispatch — a stored URL may
// have been altered out-of-band since it was last checked.
func ValidateURL(raw string) Verdict {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return deny("Invalid URL format")
	}

	if parsed.Scheme != "https" {
		return deny("Webhook URL must use HTTPS")
	}

	hostname := strings.ToLower(parsed.Hostname())

	if blockedHosts[hostname] {
		if strings.HasPrefix(hostname, "metadata.") || hostname == "169.254.169.254" {
			return deny("Metadata/link-local addresses are not allowed")
		}
		return deny("Localhost URLs are not allowed")
	}

	if strings.HasPrefix(hostname, "10.") {
		return deny("Private IP addresses are not allowed")
	}
	if strings.HasPrefix(hostname, "192.168.") {
		return deny("Private IP addresses are not allowed")
	}
	if matchesPrivate172(hostname) {
		return deny("Private IP addresses are not allowed")
	}
	if strings.HasPrefix(hostname, "169.254.") {
		return deny("Metadata/link-local addresses are not allowed")
	}

	if strings.HasSuffix(hostname, ".internal") || strings.HasSuffix(hostname, ".local") ||
		strings.HasSuffix(hostname, ".localhost") {
		return deny("Internal network addresses are not allowed")
	}

	return allow()
}

// matchesPrivate172 reports whether the hostname starts with 172.16. through
// 172.31. — the second octet is range-checked, not pattern-matched.
func matchesPrivate172(hostname string) bool {
	rest, ok := strings.CutPrefix(hostname, "172.")
	if !ok {
		return false
	}
	octet, _, ok := strings.Cut(rest, ".")
	if !ok {
		return false
	}
	if len(octet) != 2 || octet[0] < '0' || octet[0] > '9' || octet[1] < '0' || octet[1] > '9' {
		return false
	}
	n := int(octet[0]-'0')*10 + int(octet[1]-'0')
	return n >= 16 && n <= 31
}

// Classification of one resolved IP address. Computed per dispatch
// attempt, never persisted.
type Classification int

const (
	ClassPublic Classification = iota
	ClassLoopback
	ClassPrivateV4
	ClassLinkLocal
	ClassUniqueLocalV6
	ClassMulticast
	ClassMetadata
	ClassUnspecified
)

// Blocked reports whether an address with this classification may be dialed.
func (c Classification) Blocked() bool {
	return c != ClassPublic
}

func (c Classification) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassLoopback:
		return "loopback"
	case ClassPrivateV4:
		return "private-v4"
	case ClassLinkLocal:
		return "link-local"
	case ClassUniqueLocalV6:
		return "unique-local-v6"
	case ClassMulticast:
		return "multicast"
	case ClassMetadata:
		return "metadata-endpoint"
	case ClassUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// metadataAddr is the conventional cloud metadata service address.
var metadataAddr = netip.AddrFrom4([4]byte{169, 254, 169, 254})

// ClassifyAddr places a single IP address into a policy category.
func ClassifyAddr(addr netip.Addr) Classification {
	addr = addr.Unmap()
	switch {
	case addr == metadataAddr:
		return ClassMetadata
	case addr.IsLoopback():
		return ClassLoopback
	case addr.IsUnspecified():
		return ClassUnspecified
	case addr.IsMulticast():
		return ClassMulticast
	case addr.IsLinkLocalUnicast():
		return ClassLinkLocal
	case addr.Is4() && addr.IsPrivate():
		return ClassPrivateV4
	case addr.Is6() && addr.IsPrivate():
		// fc00::/7 unique local range
		return ClassUniqueLocalV6
	case addr.IsPrivate():
		return ClassPrivateV4
	default:
		return ClassPublic
	}
}
