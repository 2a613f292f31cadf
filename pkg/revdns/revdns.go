// Package revdns resolves hostnames for leased IP addresses through PTR
// queries against the router's own DNS server. It is used to enrich records
// of DHCP clients that did not advertise any hostname to the DHCP server.
package revdns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver performs reverse (PTR) lookups against a single DNS server.
type Resolver struct {
	serverAddr string
	timeout    time.Duration
}

func NewResolver(server string, port int) *Resolver {
	return &Resolver{
		serverAddr: net.JoinHostPort(server, strconv.Itoa(port)),
		// the server is on the local LAN, the query should come back quickly
		timeout: 500 * time.Millisecond,
	}
}

// LookupHostname returns the PTR record for the given IP address, without the
// trailing dot. An empty string with nil error means the server answered but
// has no PTR record for that address.
func (r *Resolver) LookupHostname(ctx context.Context, ip netip.Addr) (string, error) {
	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("failed to build reverse name for %s: %w", ip, err)
	}

	c := new(dns.Client)
	c.Timeout = r.timeout

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.Question = append(m.Question, dns.Question{
		Name:   arpa,
		Qtype:  dns.TypePTR,
		Qclass: dns.ClassINET})

	resp, _, err := c.ExchangeContext(ctx, m, r.serverAddr)
	if err != nil {
		return "", err
	}

	if resp.Rcode == dns.RcodeNameError {
		// NXDOMAIN: no PTR record, not an error
		return "", nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("PTR query for %s against %s failed: %s", ip, r.serverAddr, dns.RcodeToString[resp.Rcode])
	}

	for _, ans := range resp.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
