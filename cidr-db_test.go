package cfscan

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkGroups_Contains(t *testing.T) {
	groups := NetworkGroups{}
	require.NoError(t, groups.AddCIDR("104", "104.16.0.0/12"))

	assert.True(t, groups.Contains(net.ParseIP("104.16.1.1")))
	assert.False(t, groups.Contains(net.ParseIP("8.8.8.8")))
}

func TestNetworkGroups_AddCIDR_Invalid(t *testing.T) {
	groups := NetworkGroups{}
	err := groups.AddCIDR("bad", "not-a-cidr")
	assert.Error(t, err)
}
