package netctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLease(t *testing.T) {
	out := "udhcpc: started, v1.36.1\nlease: 192.168.49.77, lease time 43200\nrouter: 192.168.49.1\n"
	addr, gw := parseLease(out)
	assert.Equal(t, "192.168.49.77", addr)
	assert.Equal(t, "192.168.49.1", gw)
}

func TestParseLeaseNoLease(t *testing.T) {
	addr, gw := parseLease("udhcpc: no lease, failing\n")
	assert.Empty(t, addr)
	assert.Empty(t, gw)
}

func TestSubnetOf(t *testing.T) {
	assert.Equal(t, "192.168.49.0/24", subnetOf("192.168.49.77"))
	// Unparseable input passes through untouched.
	assert.Equal(t, "garbage", subnetOf("garbage"))
}

func TestLinkLocalAddressFallback(t *testing.T) {
	// Unknown interface falls back to a fixed address rather than failing.
	assert.Equal(t, "169.254.1.1", linkLocalAddress("does-not-exist0"))
}
