package cfscan

import (
	"net"
	"sort"
)

// NetworkGroups maps a group key (the first octet of a v4 range or first
// hextet of a v6 range, e.g. "104") to the CIDR ranges sampled under that
// key. Mirrors the original's network_groups dict.
type NetworkGroups map[string][]*net.IPNet

// defaultNetworkGroups is used when ipv4.txt and ipv6.txt supply no
// ranges between them.
func defaultNetworkGroups() NetworkGroups {
	_, n, _ := net.ParseCIDR("104.16.0.0/12")
	return NetworkGroups{"104": {n}}
}

// AddCIDR parses and appends a CIDR range under the given group key.
func (g NetworkGroups) AddCIDR(key, cidr string) error {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		return err
	}
	g[key] = append(g[key], n)
	return nil
}

// Contains reports whether any configured range contains ip.
func (g NetworkGroups) Contains(ip net.IP) bool {
	for _, nets := range g {
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// keys returns the group keys in a stable order for deterministic
// group-then-list sampling in tests.
func (g NetworkGroups) keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
