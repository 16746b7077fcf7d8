// Package securenets parses and matches the IP-subnet allow-list applied
// before HTTP auth on the map server (spec.md §4.2, §6 "Securenets file").
package securenets

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"
)

// List is an ordered set of allowed subnets.
type List struct {
	prefixes []netip.Prefix
}

// Allowed reports whether ip lies in any configured subnet. An empty List
// (no securenets configured at all) allows everything -- the check is
// skipped entirely per spec.md §4.2 step 1 ("if configured").
func (l *List) Allowed(ip netip.Addr) bool {
	if l == nil || len(l.prefixes) == 0 {
		return true
	}
	ip = ip.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// Empty reports whether no networks were configured.
func (l *List) Empty() bool {
	return l == nil || len(l.prefixes) == 0
}

// Load reads a securenets file: one network per non-comment line, in
// either "MASK NETWORK" dotted-quad form or CIDR form ("a.b.c.d/n" or
// "v6/n").
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads securenets entries from r.
func Parse(r io.Reader) (*List, error) {
	l := &List{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("securenets line %d: %w", lineNo, err)
		}
		l.prefixes = append(l.prefixes, prefix)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

func parseLine(line string) (netip.Prefix, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		// CIDR form: a.b.c.d/n or v6/n
		prefix, err := netip.ParsePrefix(fields[0])
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	case 2:
		// "MASK NETWORK" dotted-quad form (mask first).
		mask, err := netip.ParseAddr(fields[0])
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid mask %q: %w", fields[0], err)
		}
		network, err := netip.ParseAddr(fields[1])
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid network %q: %w", fields[1], err)
		}
		bits, err := maskBits(mask)
		if err != nil {
			return netip.Prefix{}, err
		}
		return netip.PrefixFrom(network, bits).Masked(), nil
	default:
		return netip.Prefix{}, fmt.Errorf("malformed securenets line %q", line)
	}
}

// maskBits converts a dotted-quad subnet mask into a CIDR prefix length.
func maskBits(mask netip.Addr) (int, error) {
	if !mask.Is4() {
		return 0, fmt.Errorf("mask must be IPv4")
	}
	b := mask.As4()
	bits := 0
	seenZero := false
	for _, octet := range b {
		for i := 7; i >= 0; i-- {
			bit := octet & (1 << uint(i))
			if bit != 0 {
				if seenZero {
					return 0, fmt.Errorf("non-contiguous mask")
				}
				bits++
			} else {
				seenZero = true
			}
		}
	}
	return bits, nil
}

// AddrFromRemote extracts a netip.Addr from a "host:port" or bare host
// remote-address string, taking a loopback-forwarded address into account
// when present (spec.md §4.2 "Securenets").
func AddrFromRemote(remoteAddr, forwardedFor string) (netip.Addr, error) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}

	if addr.IsLoopback() && forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		candidate := strings.TrimSpace(parts[0])
		if fwd, ferr := netip.ParseAddr(candidate); ferr == nil {
			return fwd, nil
		}
	}
	return addr, nil
}
