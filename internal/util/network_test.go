package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedCIDRs(t *testing.T) {
	cidrs, err := ParseTrustedCIDRs([]string{"10.0.0.0/8", " 192.168.0.0/16 ", "", "2001:db8::/32"})
	require.NoError(t, err)
	require.Len(t, cidrs, 3)
	assert.Equal(t, "10.0.0.0/8", cidrs[0].String())
	assert.Equal(t, "192.168.0.0/16", cidrs[1].String())
}

func TestParseTrustedCIDRsEmpty(t *testing.T) {
	cidrs, err := ParseTrustedCIDRs(nil)
	require.NoError(t, err)
	assert.Nil(t, cidrs)
}

func TestParseTrustedCIDRsInvalid(t *testing.T) {
	_, err := ParseTrustedCIDRs([]string{"10.0.0.0/8", "not-a-cidr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-cidr")
}

func TestIsIPInTrustedCIDRs(t *testing.T) {
	cidrs, err := ParseTrustedCIDRs([]string{"10.0.0.0/8", "192.168.1.0/24"})
	require.NoError(t, err)

	assert.True(t, IsIPInTrustedCIDRs(net.ParseIP("10.255.0.1"), cidrs))
	assert.True(t, IsIPInTrustedCIDRs(net.ParseIP("192.168.1.10"), cidrs))
	assert.False(t, IsIPInTrustedCIDRs(net.ParseIP("192.168.2.10"), cidrs))
	assert.False(t, IsIPInTrustedCIDRs(net.ParseIP("203.0.113.7"), cidrs))
	assert.False(t, IsIPInTrustedCIDRs(net.ParseIP("10.0.0.1"), nil))
}

func TestSplitHostPortDefault(t *testing.T) {
	tests := []struct {
		addr string
		host string
		port int
	}{
		{"example.com:8443", "example.com", 8443},
		{"example.com", "example.com", 80},
		{"10.0.0.9:19620", "10.0.0.9", 19620},
		{"[::1]:8080", "::1", 8080},
		{"example.com:banana", "example.com", 80},
	}
	for _, tc := range tests {
		host, port := SplitHostPortDefault(tc.addr, 80)
		assert.Equal(t, tc.host, host, tc.addr)
		assert.Equal(t, tc.port, port, tc.addr)
	}
}

func TestIsPortAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	assert.False(t, IsPortAvailable("127.0.0.1", port))
}
