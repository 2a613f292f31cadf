package leasefetch

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"
	"golang.org/x/crypto/ssh"

	"github.com/cjnaz/routermonitor/pkg/config"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

// each line of the dd-wrt (dnsmasq) leases file looks like:
//
//	1587457675 00:0d:c5:5c:82:6d 192.168.1.105 Hopper-ETH0 01:00:0d:c5:5c:82:6d
//
// where the first field is the lease expiry as unix epoch (0 for static leases)
var ddwrtLeaseLine = regexp.MustCompile(`^(\d+) ([0-9a-fA-F:]+) ([\d.]+) (\S+)`)

// DdwrtFetcher reads the dnsmasq leases file of a dd-wrt router over SSH.
type DdwrtFetcher struct {
	cfg config.DdwrtConfig
	log *logger.CustomLogger
}

func NewDdwrtFetcher(cfg config.DdwrtConfig, log *logger.CustomLogger) *DdwrtFetcher {
	return &DdwrtFetcher{cfg: cfg, log: log}
}

func (f *DdwrtFetcher) FetchLeases(_ context.Context) ([]*dnsmasq.Lease, error) {
	auth, err := f.authMethods()
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User: f.cfg.Username,
		Auth: auth,
		// the router is on the local LAN and its host key changes on
		// every firmware reflash, so pinning it is not practical
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         f.cfg.ConnectTimeout,
	}

	addr := f.cfg.Host
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dd-wrt router at %s: %w", addr, err)
	}
	defer func() {
		_ = client.Close()
	}()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH session: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	out, err := session.Output("cat " + f.cfg.LeaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read lease file %s: %w", f.cfg.LeaseFile, err)
	}

	return f.parseLeases(string(out)), nil
}

func (f *DdwrtFetcher) authMethods() ([]ssh.AuthMethod, error) {
	var auth []ssh.AuthMethod
	if f.cfg.KeyFile != "" {
		key, err := os.ReadFile(f.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key file %s: %w", f.cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if f.cfg.Password != "" {
		auth = append(auth, ssh.Password(f.cfg.Password))
	}
	return auth, nil
}

// parseLeases converts the raw lease file content into leases.
// Lines that do not match the expected format are logged and skipped, the
// fetch keeps going.
func (f *DdwrtFetcher) parseLeases(content string) []*dnsmasq.Lease {
	var leases []*dnsmasq.Lease
	for _, line := range strings.Split(content, "\n") {
		m := ddwrtLeaseLine.FindStringSubmatch(line)
		if m == nil {
			if len(line) > 0 && f.log != nil {
				f.log.Warnf("skipping bogus line in lease file: %q", line)
			}
			continue
		}

		epoch, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			// unreachable given the regexp, but don't trust it
			continue
		}
		mac, err := net.ParseMAC(m[2])
		if err != nil {
			if f.log != nil {
				f.log.Warnf("skipping lease with invalid MAC address %q", m[2])
			}
			continue
		}
		ip, err := netip.ParseAddr(m[3])
		if err != nil {
			if f.log != nil {
				f.log.Warnf("skipping lease with invalid IP address %q", m[3])
			}
			continue
		}

		var expires time.Time
		if epoch > 0 {
			expires = time.Unix(epoch, 0)
		}

		leases = append(leases, &dnsmasq.Lease{
			Expires:  expires,
			MacAddr:  mac,
			IPAddr:   ip,
			Hostname: m[4],
		})
	}
	return leases
}
