package util

import (
	"fmt"
	"net"
	"strings"
)

// IsIPInTrustedCIDRs reports whether ip falls inside any of the given
// networks. Used to decide whether proxy-protocol source rewriting from a
// peer is honoured.
func IsIPInTrustedCIDRs(ip net.IP, trustedCIDRs []*net.IPNet) bool {
	for _, cidr := range trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func ParseTrustedCIDRs(cidrStrings []string) ([]*net.IPNet, error) {
	if len(cidrStrings) == 0 {
		return nil, nil
	}

	var cidrs []*net.IPNet
	for _, cidrStr := range cidrStrings {
		cidrStr = strings.TrimSpace(cidrStr)
		if cidrStr == "" {
			continue
		}

		_, network, err := net.ParseCIDR(cidrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidrStr, err)
		}
		cidrs = append(cidrs, network)
	}

	return cidrs, nil
}

// IsPortAvailable checks if a port is available by attempting to bind to it
func IsPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return false
	}
	defer listener.Close()
	return true
}

// SplitHostPortDefault splits addr into host and port, falling back to
// defaultPort when addr carries none.
func SplitHostPortDefault(addr string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, defaultPort
	}
	port := defaultPort
	if _, perr := fmt.Sscanf(portStr, "%d", &port); perr != nil {
		port = defaultPort
	}
	return host, port
}
