package cfscan

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIPInCIDR_StaysInRange(t *testing.T) {
	_, n, err := net.ParseCIDR("104.16.0.0/12")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		ip, err := randomIPInCIDR(n)
		require.NoError(t, err)
		assert.True(t, n.Contains(ip), "%s not in %s", ip, n)
	}
}

func TestRandomIPInCIDR_AvoidsNetworkAndBroadcast(t *testing.T) {
	_, n, err := net.ParseCIDR("10.0.0.0/30") // hosts: .1, .2 only
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		ip, err := randomIPInCIDR(n)
		require.NoError(t, err)
		last := ip.To4()[3]
		assert.NotEqual(t, byte(0), last)
		assert.NotEqual(t, byte(3), last)
	}
}

func TestGroupSampler_NextIP(t *testing.T) {
	groups := NetworkGroups{}
	require.NoError(t, groups.AddCIDR("104", "104.16.0.0/12"))
	sampler := NewGroupSampler(groups, nil)

	ip, err := sampler.NextIP()
	require.NoError(t, err)
	assert.True(t, groups.Contains(ip))
}

func TestGroupSampler_HotBias(t *testing.T) {
	groups := NetworkGroups{}
	require.NoError(t, groups.AddCIDR("104", "104.16.0.0/12"))
	ring := NewHotRing()
	ring.Add("10.0.0.0/8")
	sampler := NewGroupSampler(groups, ring)

	hot := 0
	const trials = 10000
	_, hotNet, _ := net.ParseCIDR("10.0.0.0/8")
	for i := 0; i < trials; i++ {
		ip, err := sampler.NextIP()
		require.NoError(t, err)
		if hotNet.Contains(ip) {
			hot++
		}
	}
	ratio := float64(hot) / trials
	assert.InDelta(t, hotDrawProbability, ratio, 0.03)
}

func TestHotSubnetForIP_IPv4UsesSlash24(t *testing.T) {
	n := hotSubnetForIP("104.16.123.45")
	require.NotNil(t, n)
	assert.Equal(t, "104.16.123.0/24", n.String())
}

func TestHotSubnetForIP_IPv6UsesSlash48(t *testing.T) {
	n := hotSubnetForIP("2606:4700:1234:5678::1")
	require.NotNil(t, n)
	assert.Equal(t, "2606:4700:1234::/48", n.String())
}

func TestHotSubnetForIP_InvalidReturnsNil(t *testing.T) {
	assert.Nil(t, hotSubnetForIP("not-an-ip"))
}

func TestGroupSampler_RecordHitFeedsSampling(t *testing.T) {
	groups := NetworkGroups{}
	require.NoError(t, groups.AddCIDR("104", "104.16.0.0/12"))
	sampler := NewGroupSampler(groups, nil)
	require.Equal(t, 0, sampler.hot.Len())

	sampler.RecordHit(hotSubnetForIP("104.16.1.1"))
	assert.Equal(t, 1, sampler.hot.Len())
}

func TestGroupSampler_NoRanges(t *testing.T) {
	sampler := NewGroupSampler(NetworkGroups{}, nil)
	_, err := sampler.NextIP()
	assert.Error(t, err)
}
