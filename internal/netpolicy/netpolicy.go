// Package netpolicy decides whether an outbound fetch should go through
// the proxy. The rules intentionally proxy when the server sits ON the
// configured (home/private) network and go direct otherwise, which keeps
// proxy usage off the majority of public traffic.
package netpolicy

import (
	"net"
	"path"
	"strings"
)

// Rules is the network-detection configuration the policy evaluates.
// All fields come from configuration; the policy itself never performs
// network calls.
type Rules struct {
	Enabled       bool
	CIDRs         []string
	HostnameGlobs []string
}

// ShouldUseProxy reports whether a fetch from the given server address
// should be routed through the proxy. Indicators are evaluated in order:
// configured CIDR/range match, hostname glob match, private/loopback IP.
// Any single true indicator flips the decision to proxy.
func ShouldUseProxy(rules Rules, serverIP, serverHostname string) bool {
	if !rules.Enabled {
		return false
	}

	ip := net.ParseIP(strings.TrimSpace(serverIP))

	if ip != nil && matchesCIDR(rules.CIDRs, ip) {
		return true
	}
	if matchesHostname(rules.HostnameGlobs, serverHostname) {
		return true
	}
	if ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
		return true
	}
	return false
}

func matchesCIDR(cidrs []string, ip net.IP) bool {
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(c); err == nil {
			if network.Contains(ip) {
				return true
			}
			continue
		}
		// Bare IPs are allowed as a degenerate range.
		if single := net.ParseIP(c); single != nil && single.Equal(ip) {
			return true
		}
	}
	return false
}

func matchesHostname(globs []string, hostname string) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return false
	}
	for _, g := range globs {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if ok, err := path.Match(g, hostname); err == nil && ok {
			return true
		}
	}
	return false
}
