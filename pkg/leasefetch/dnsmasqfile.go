package leasefetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"

	"github.com/cjnaz/routermonitor/pkg/config"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

// DnsmasqFileFetcher reads a dnsmasq leases file on the local filesystem,
// for the case where the monitor runs on the same box that serves DHCP.
type DnsmasqFileFetcher struct {
	cfg config.DnsmasqConfig
	log *logger.CustomLogger
}

func NewDnsmasqFileFetcher(cfg config.DnsmasqConfig, log *logger.CustomLogger) *DnsmasqFileFetcher {
	return &DnsmasqFileFetcher{cfg: cfg, log: log}
}

func (f *DnsmasqFileFetcher) FetchLeases(_ context.Context) ([]*dnsmasq.Lease, error) {
	leaseFile, err := os.Open(f.cfg.LeaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open dnsmasq lease file: %w", err)
	}
	defer func() {
		_ = leaseFile.Close()
	}()

	leases, err := dnsmasq.ReadLeases(leaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dnsmasq lease file %s: %w", f.cfg.LeaseFile, err)
	}

	// dnsmasq writes epoch 0 for static leases ("infinite" lease time);
	// normalize that to the zero time, the static marker used everywhere else
	for _, lease := range leases {
		if lease.Expires.Unix() <= 0 {
			lease.Expires = time.Time{}
		}
	}

	return leases, nil
}
