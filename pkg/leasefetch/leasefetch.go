// Package leasefetch retrieves the current DHCP lease table from the configured
// server. Three server types are supported: pfSense (HTML scrape of the lease
// status page), dd-wrt (dnsmasq leases file read over SSH) and a plain local
// dnsmasq leases file.
//
// All fetchers normalize their output into []*dnsmasq.Lease; a zero Expires
// timestamp marks a static lease.
package leasefetch

import (
	"context"
	"fmt"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"

	"github.com/cjnaz/routermonitor/pkg/config"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

// Fetcher retrieves the current lease table from a DHCP server.
type Fetcher interface {
	FetchLeases(ctx context.Context) ([]*dnsmasq.Lease, error)
}

// New selects the fetcher implementation matching the configured server type.
func New(cfg *config.Config, log *logger.CustomLogger) (Fetcher, error) {
	switch cfg.ServerType {
	case config.ServerTypePfSense:
		return NewPfSenseFetcher(cfg.PfSense, log), nil
	case config.ServerTypeDdwrt:
		return NewDdwrtFetcher(cfg.Ddwrt, log), nil
	case config.ServerTypeDnsmasq:
		return NewDnsmasqFileFetcher(cfg.Dnsmasq, log), nil
	default:
		return nil, fmt.Errorf("unsupported DHCP server type: %q", cfg.ServerType)
	}
}
