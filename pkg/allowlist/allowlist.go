// Package allowlist provides an opt-in network-identity gate for clients.
//
// Allowlisting is opt-in by design: an empty list admits every client, a
// non-empty list admits only literal matches and CIDR containment. Malformed
// client addresses are rejected (fail-closed) once a list is configured.
package allowlist

import (
	"fmt"
	"net/netip"
	"strings"
)

// Allowlist is an immutable set of literal addresses and CIDR ranges,
// parsed once at construction. It is safe for concurrent use without
// locking because it is never mutated after New.
type Allowlist struct {
	prefixes []netip.Prefix
	source   []string
}

// New parses entries (literal IPv4/IPv6 addresses or CIDR ranges) into an
// Allowlist. A malformed entry is a configuration error and fails
// construction; runtime inputs are handled leniently by IsAllowed instead.
func New(entries []string) (*Allowlist, error) {
	al := &Allowlist{
		prefixes: make([]netip.Prefix, 0, len(entries)),
		source:   entries,
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist CIDR %q: %w", entry, err)
			}
			al.prefixes = append(al.prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist address %q: %w", entry, err)
		}
		// A literal is a single-address range.
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return al, nil
}

// IsAllowed reports whether the client address ip may proceed.
//
// With no configured entries every address is allowed (allowlisting is
// opt-in). With a non-empty list, a malformed ip string is rejected rather
// than raising: an unparseable peer address never bypasses the gate.
func (al *Allowlist) IsAllowed(ip string) bool {
	if len(al.prefixes) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range al.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Stats describes the parsed allowlist for diagnostics.
type Stats struct {
	Enabled bool `json:"enabled"`
	Ranges  int  `json:"ranges"`
}

// Stats returns the parsed range count and whether the gate is active.
func (al *Allowlist) Stats() Stats {
	return Stats{
		Enabled: len(al.prefixes) > 0,
		Ranges:  len(al.prefixes),
	}
}
