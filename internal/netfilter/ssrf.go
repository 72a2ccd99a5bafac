package netfilter

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// IsPrivateIP reports whether ip is loopback, private, link-local,
// broadcast, unspecified, or otherwise unsuitable as an SSRF target.
//
// Ranges match the original Rust implementation exactly, including the
// CGNAT range (100.64.0.0/10) and 192.0.0.0/24 that a plain net.IP.IsPrivate
// check omits.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		return v4.IsLoopback() ||
			v4.IsPrivate() ||
			v4.IsLinkLocalUnicast() ||
			isBroadcast(v4) ||
			v4.IsUnspecified() ||
			(v4[0] == 100 && v4[1]&0xC0 == 64) ||
			(v4[0] == 192 && v4[1] == 0 && v4[2] == 0)
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		isULA(ip) ||
		ip.IsLinkLocalUnicast()
}

func isBroadcast(v4 net.IP) bool {
	return v4[0] == 255 && v4[1] == 255 && v4[2] == 255 && v4[3] == 255
}

// isULA reports unique local addresses, fc00::/7, which net.IP has no
// direct helper for.
func isULA(ip net.IP) bool {
	v6 := ip.To16()
	if v6 == nil {
		return false
	}
	return v6[0]&0xFE == 0xFC
}

// IsSSRFAllowed reports whether ip is covered by an allowlist CIDR entry.
func IsSSRFAllowed(ip net.IP, allowlist []*net.IPNet) bool {
	for _, n := range allowlist {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func validateIPs(host string, ips []net.IP, allowlist []*net.IPNet) error {
	if len(ips) == 0 {
		return fmt.Errorf("DNS resolution failed for %s", host)
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) && !IsSSRFAllowed(ip, allowlist) {
			return fmt.Errorf("SSRF blocked: %s resolves to private IP %s", host, ip)
		}
	}
	return nil
}

// SSRFCheck resolves url's host and rejects it if it resolves to a
// private/loopback/link-local IP not explicitly allowlisted. Safe for both
// blocking and async callers — resolution always goes through
// net.DefaultResolver, which blocks the calling goroutine; callers that
// need a hard deadline should pass a ctx with one.
func SSRFCheck(ctx context.Context, u *url.URL, allowlist []*net.IPNet) error {
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		return validateIPs(host, []net.IP{ip}, allowlist)
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("DNS resolution failed for %s: %w", host, err)
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return validateIPs(host, ips, allowlist)
}

// ParseCIDRAllowlist parses a list of CIDR strings into net.IPNet entries.
func ParseCIDRAllowlist(cidrs []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("invalid SSRF allowlist CIDR %q: %w", c, err)
		}
		out = append(out, n)
	}
	return out, nil
}
