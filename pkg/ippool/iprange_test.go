package ippool

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeContains(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		startIP  string
		endIP    string
		expected bool
	}{
		// IPv4 tests
		{
			name:     "IP within range",
			ip:       "192.168.1.10",
			startIP:  "192.168.1.1",
			endIP:    "192.168.1.100",
			expected: true,
		},
		{
			name:     "IP equal to start of range",
			ip:       "192.168.1.1",
			startIP:  "192.168.1.1",
			endIP:    "192.168.1.100",
			expected: true,
		},
		{
			name:     "IP equal to end of range",
			ip:       "192.168.1.100",
			startIP:  "192.168.1.1",
			endIP:    "192.168.1.100",
			expected: true,
		},
		{
			name:     "IP outside range (too low)",
			ip:       "192.168.1.0",
			startIP:  "192.168.1.1",
			endIP:    "192.168.1.100",
			expected: false,
		},
		{
			name:     "IP outside range (too high)",
			ip:       "192.168.1.101",
			startIP:  "192.168.1.1",
			endIP:    "192.168.1.100",
			expected: false,
		},

		// IPv6 tests
		{
			name:     "IPv6 IP within range",
			ip:       "2001:db8::2",
			startIP:  "2001:db8::1",
			endIP:    "2001:db8::ff",
			expected: true,
		},
		{
			name:     "IPv6 IP outside range",
			ip:       "2001:db8::100",
			startIP:  "2001:db8::1",
			endIP:    "2001:db8::ff",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRangeFromString(tt.startIP, tt.endIP)
			assert.True(t, r.IsValid())
			assert.Equal(t, tt.expected, r.Contains(netip.MustParseAddr(tt.ip)))
		})
	}
}

func TestRangeInvalid(t *testing.T) {
	assert.False(t, NewRangeFromString("not-an-ip", "192.168.1.100").IsValid())
	assert.False(t, NewRangeFromString("192.168.1.1", "").IsValid())
}

func TestPool(t *testing.T) {
	var empty Pool
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.Contains(netip.MustParseAddr("192.168.1.10")))

	pool := Pool{Ranges: []Range{
		NewRangeFromString("192.168.1.100", "192.168.1.150"),
		NewRangeFromString("192.168.1.200", "192.168.1.250"),
	}}
	assert.False(t, pool.IsEmpty())
	assert.Equal(t, int64(102), pool.Size())

	assert.True(t, pool.Contains(netip.MustParseAddr("192.168.1.100")))
	assert.True(t, pool.Contains(netip.MustParseAddr("192.168.1.220")))
	assert.False(t, pool.Contains(netip.MustParseAddr("192.168.1.175")))
	assert.False(t, pool.Contains(netip.MustParseAddr("10.0.0.1")))
}
