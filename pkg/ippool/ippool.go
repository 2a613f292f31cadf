// Package ippool models the DHCP address pool as a set of start/end IP ranges.
// It is used to flag known clients whose address lies outside the pool handed
// out by the DHCP server (typically statically-configured devices).
package ippool

import (
	"bytes"
	"math/big"
	"net"
	"net/netip"
)

type Range struct {
	Start net.IP
	End   net.IP
}

func NewRangeFromString(start, end string) Range {
	return Range{
		Start: net.ParseIP(start),
		End:   net.ParseIP(end),
	}
}

func (r Range) IsValid() bool {
	return r.Start != nil && r.End != nil
}

// Contains checks if the IP address falls within the Range, boundaries included.
func (r Range) Contains(ipOrig netip.Addr) bool {
	// Ensure that all IP addresses are in a consistent IPv4 or IPv6 form
	ip := net.IP(ipOrig.AsSlice()).To16()
	startIP := r.Start.To16()
	endIP := r.End.To16()

	if ip == nil || startIP == nil || endIP == nil {
		return false
	}

	return bytes.Compare(ip, startIP) >= 0 && bytes.Compare(ip, endIP) <= 0
}

// Size returns the number of IP addresses in the range or -1 if they are too many to fit an int64
func (r Range) Size() int64 {
	size := big.NewInt(0)
	size.Add(size, big.NewInt(0).SetBytes(r.End))
	size.Sub(size, big.NewInt(0).SetBytes(r.Start))
	size.Add(size, big.NewInt(1))
	if size.IsInt64() {
		return size.Int64()
	}

	// too many IPs in range... this can happen with IPv6
	return -1
}

// Pool is a set of disjoint ranges; an empty Pool contains nothing.
type Pool struct {
	Ranges []Range
}

func NewPoolFromString(start, end string) Pool {
	return Pool{
		Ranges: []Range{NewRangeFromString(start, end)},
	}
}

func (p Pool) IsEmpty() bool {
	return len(p.Ranges) == 0
}

func (p Pool) Contains(ip netip.Addr) bool {
	for _, r := range p.Ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

func (p Pool) Size() int64 {
	size := int64(0)
	for _, r := range p.Ranges {
		s := r.Size()
		if s == -1 {
			return -1
		}
		size += s
	}
	return size
}
