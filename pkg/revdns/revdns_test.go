package revdns

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestDNSServer runs a local DNS server answering PTR queries from the
// given map of reverse-name -> hostname. Returns the listen address.
func startTestDNSServer(t *testing.T, records map[string]string) string {
	t.Helper()

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		if target, ok := records[q.Name]; ok && q.Qtype == dns.TypePTR {
			m.Answer = append(m.Answer, &dns.PTR{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
				Ptr: target,
			})
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &dns.Server{PacketConn: pc, Handler: mux}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	return pc.LocalAddr().String()
}

func testResolver(addr string) *Resolver {
	return &Resolver{serverAddr: addr, timeout: 2 * time.Second}
}

func TestLookupHostname(t *testing.T) {
	addr := startTestDNSServer(t, map[string]string{
		"50.1.168.192.in-addr.arpa.": "laptop.lan.",
	})

	host, err := testResolver(addr).LookupHostname(context.Background(), netip.MustParseAddr("192.168.1.50"))
	require.NoError(t, err)
	assert.Equal(t, "laptop.lan", host, "trailing dot must be stripped")
}

func TestLookupHostnameNoRecord(t *testing.T) {
	addr := startTestDNSServer(t, nil)

	// NXDOMAIN is not an error, just "no hostname known"
	host, err := testResolver(addr).LookupHostname(context.Background(), netip.MustParseAddr("192.168.1.99"))
	require.NoError(t, err)
	assert.Empty(t, host)
}
