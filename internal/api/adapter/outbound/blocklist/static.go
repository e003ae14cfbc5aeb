package blocklist

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/anthanhphan/go-file-relay/internal/api/port"
)

// Static blocks a fixed set of addresses and prefixes loaded from config.
type Static struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

var _ port.Blocklist = (*Static)(nil)

// NewStatic parses entries such as "203.0.113.7" or "198.51.100.0/24".
func NewStatic(entries []string) (*Static, error) {
	s := &Static{addrs: make(map[netip.Addr]struct{}, len(entries))}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("blocklist: parse prefix %q: %w", entry, err)
			}
			s.prefixes = append(s.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("blocklist: parse address %q: %w", entry, err)
		}
		s.addrs[addr.Unmap()] = struct{}{}
	}
	return s, nil
}

func (s *Static) IsBlocked(_ context.Context, ip string) (bool, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, nil
	}
	addr = addr.Unmap()
	if _, ok := s.addrs[addr]; ok {
		return true, nil
	}
	for _, p := range s.prefixes {
		if p.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// Len is the number of configured entries.
func (s *Static) Len() int { return len(s.addrs) + len(s.prefixes) }
