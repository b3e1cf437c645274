package cfscan

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
	"net"
)

// hotDrawProbability is the fraction of draws that come from the hot
// ring rather than the configured network groups, matching the
// original's 30% bias.
const hotDrawProbability = 0.30

// GroupSampler draws random IPs from a set of network groups, biased
// toward subnets recorded in a HotRing. Plays the same role as Random's
// resolver picker: a read-mostly pick over a shared pool, with the
// "recently good" subset tracked separately under its own lock.
type GroupSampler struct {
	groups NetworkGroups
	hot    *HotRing
}

// NewGroupSampler returns a sampler over the given groups, recording
// hits into ring.
func NewGroupSampler(groups NetworkGroups, ring *HotRing) *GroupSampler {
	if ring == nil {
		ring = NewHotRing()
	}
	return &GroupSampler{groups: groups, hot: ring}
}

// NextIP draws a random address: with probability hotDrawProbability from
// a subnet in the hot ring (if any), otherwise by picking a group key
// then a range within it. Returns an error only if the sampler has no
// ranges to draw from at all.
func (s *GroupSampler) NextIP() (net.IP, error) {
	if s.hot.Len() > 0 && mrand.Float64() < hotDrawProbability {
		if cidr, ok := s.hot.Sample(); ok {
			if _, n, err := net.ParseCIDR(cidr); err == nil {
				return randomIPInCIDR(n)
			}
		}
	}

	keys := s.groups.keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("no network groups configured")
	}
	key := keys[mrand.Intn(len(keys))]
	nets := s.groups[key]
	if len(nets) == 0 {
		return nil, fmt.Errorf("empty network group %q", key)
	}
	n := nets[mrand.Intn(len(nets))]
	return randomIPInCIDR(n)
}

// RecordHit records that an address which passed the TLS stage fell in
// this CIDR, for future biased sampling.
func (s *GroupSampler) RecordHit(n *net.IPNet) {
	s.hot.Add(n.String())
}

// hotSubnetForIP derives the subnet a TLS-accepted address' hot-ring hit
// is recorded under: a /24 for IPv4, a /48 for IPv6, matching the original's
// octet/hextet grouping granularity used elsewhere for network groups.
func hotSubnetForIP(ip string) *net.IPNet {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	if v4 := parsed.To4(); v4 != nil {
		mask := net.CIDRMask(24, 32)
		return &net.IPNet{IP: v4.Mask(mask), Mask: mask}
	}
	mask := net.CIDRMask(48, 128)
	return &net.IPNet{IP: parsed.Mask(mask), Mask: mask}
}

// randomIPInCIDR picks a uniformly random host address within n,
// avoiding the network and broadcast address for IPv4 ranges with more
// than two addresses (/30 and wider).
func randomIPInCIDR(n *net.IPNet) (net.IP, error) {
	ones, bits := n.Mask.Size()
	hostBits := bits - ones

	if v4 := n.IP.To4(); v4 != nil && hostBits > 1 {
		span := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
		span.Sub(span, big.NewInt(2)) // exclude network + broadcast
		offset, err := rand.Int(rand.Reader, span)
		if err != nil {
			return nil, err
		}
		ip := append(net.IP(nil), v4...)
		addOffset(ip, offset.Uint64()+1)
		return ip, nil
	}

	// IPv6, or a /31 or /32 IPv4 range: any address in range is fair game.
	span := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
	offset, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(new(big.Int).SetBytes(n.IP), offset).Bytes()
	ip := make(net.IP, len(n.IP))
	copy(ip[len(ip)-len(sum):], sum)
	return ip, nil
}

// addOffset adds off to the big-endian address ip in place.
func addOffset(ip net.IP, off uint64) {
	for i := len(ip) - 1; i >= 0 && off > 0; i-- {
		sum := uint64(ip[i]) + off
		ip[i] = byte(sum)
		off = sum >> 8
	}
}
