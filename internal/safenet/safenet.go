// Package safenet guards probe and webhook targets against reaching
// private or reserved networks. Targets are validated twice: literally at
// configuration time, and again after DNS resolution via a dialer
// Control hook, so a hostname cannot be pointed at an internal address.
package safenet

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
)

var blockedRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.0.2.0/24",
		"192.168.0.0/16",
		"198.18.0.0/15",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"::/128",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	} {
		_, ipNet, _ := net.ParseCIDR(cidr)
		blockedRanges = append(blockedRanges, ipNet)
	}
}

// IsBlockedIP reports whether ip falls in a private or reserved range.
func IsBlockedIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	for _, r := range blockedRanges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// AllowedPort reports whether a target port is acceptable: 80, 443, or
// an unprivileged port in [1024, 65535].
func AllowedPort(port int) bool {
	if port == 80 || port == 443 {
		return true
	}
	return port >= 1024 && port <= 65535
}

// ValidateHost rejects hosts that name a blocked address literally:
// "localhost", or an IP literal in a blocked range. Hostnames that
// merely resolve to blocked addresses are caught later by DialControl.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("empty hostname")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("target %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil && IsBlockedIP(ip) {
		return fmt.Errorf("target address %s is in a blocked range", ip)
	}
	return nil
}

// ValidateHostPort applies both the host rules and the port allow-list.
func ValidateHostPort(host string, port int) error {
	if err := ValidateHost(host); err != nil {
		return err
	}
	if !AllowedPort(port) {
		return fmt.Errorf("port %d is not allowed", port)
	}
	return nil
}

// SplitHostPort parses "host:port" or "[v6]:port" and validates both parts.
func SplitHostPort(target string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid target %q: expected host:port", target)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if err := ValidateHostPort(host, port); err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// MaybeDialControl returns DialControl when allowPrivate is false, or
// nil (no restriction) when allowPrivate is true.
func MaybeDialControl(allowPrivate bool) func(string, string, syscall.RawConn) error {
	if allowPrivate {
		return nil
	}
	return DialControl
}

// DialControl is a net.Dialer Control function enforcing the block list
// after DNS resolution, immediately before the connection is made.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("blocked: invalid address %q", address)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || !AllowedPort(port) {
		return fmt.Errorf("blocked: port %s is not allowed", portStr)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("blocked: could not parse IP %q", host)
	}
	if IsBlockedIP(ip) {
		return fmt.Errorf("blocked: %s is in a private or reserved range", ip)
	}
	return nil
}
