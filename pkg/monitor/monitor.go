// Package monitor implements the reconciliation between the DHCP server lease
// table and the persisted clients database: new devices are inserted and
// notified, hostname/IP/expiry changes of known devices are applied in place.
package monitor

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"
	human_duration "github.com/davidbanham/human_duration/v3"

	"github.com/cjnaz/routermonitor/pkg/clientsdb"
	"github.com/cjnaz/routermonitor/pkg/ippool"
	"github.com/cjnaz/routermonitor/pkg/leasefetch"
	"github.com/cjnaz/routermonitor/pkg/logger"
	"github.com/cjnaz/routermonitor/pkg/notify"
)

// if the DHCP client did not advertise his own hostname to the DHCP server,
// dnsmasq (and thus dd-wrt) reports an asterisk in the hostname field
const missingHostnameMarker = "*"

// OUIResolver resolves the vendor owning the OUI prefix of a MAC address.
type OUIResolver interface {
	Lookup(ctx context.Context, mac net.HardwareAddr) (string, error)
}

// HostnameResolver resolves a hostname for an IP address (reverse DNS).
type HostnameResolver interface {
	LookupHostname(ctx context.Context, ip netip.Addr) (string, error)
}

// Options groups the optional collaborators of a Monitor.
type Options struct {
	OUI      OUIResolver      // nil disables vendor lookups
	RevDNS   HostnameResolver // nil disables hostname enrichment
	Notifier *notify.MultiNotifier
	Pool     ippool.Pool // empty pool disables the outside-pool flag

	UpdateInterval time.Duration
	SortBy         string
}

// Monitor ties together the lease fetcher, the clients database, the OUI
// resolver and the notification channels.
type Monitor struct {
	log     *logger.CustomLogger
	fetcher leasefetch.Fetcher
	db      *clientsdb.ClientsDB
	opts    Options

	// invoked after every successful update cycle (used by the web UI to
	// push the refreshed table to its websocket clients); maybe nil
	onUpdate func()
}

func New(log *logger.CustomLogger, fetcher leasefetch.Fetcher, db *clientsdb.ClientsDB, opts Options) *Monitor {
	if opts.Notifier == nil {
		opts.Notifier = notify.NewMultiNotifier()
	}
	return &Monitor{
		log:     log,
		fetcher: fetcher,
		db:      db,
		opts:    opts,
	}
}

// SetUpdateHook registers a callback invoked after every successful update.
func (m *Monitor) SetUpdateHook(f func()) {
	m.onUpdate = f
}

// Changes is the classification of one fetched lease against the stored
// record with the same MAC address.
type Changes struct {
	NewClient bool
	Hostname  bool
	IP        bool
	Expiry    bool
}

// Unchanged tells whether the lease matches the stored record exactly.
func (c Changes) Unchanged() bool {
	return !c.NewClient && !c.Hostname && !c.IP && !c.Expiry
}

// ClassifyLease compares a fetched lease against the stored record (nil when
// the MAC has never been seen). Pure function, no side effects.
func ClassifyLease(lease *dnsmasq.Lease, stored *clientsdb.NetClient) Changes {
	if stored == nil {
		return Changes{NewClient: true}
	}
	return Changes{
		Hostname: lease.Hostname != stored.Hostname,
		IP:       lease.IPAddr != stored.IP,
		Expiry:   !sameExpiry(lease.Expires, stored.Expiry),
	}
}

// sameExpiry compares two lease expiries; both zero (static lease) are equal.
func sameExpiry(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return a.Unix() == b.Unix()
}

// dedupLeases collapses duplicate MAC addresses within one fetch; the last
// lease wins. pfSense can list a static mapping plus an active lease for the
// same device, and without the dedup both would classify independently
// against the same stored record.
func dedupLeases(leases []*dnsmasq.Lease) []*dnsmasq.Lease {
	indexByMAC := make(map[string]int, len(leases))
	out := make([]*dnsmasq.Lease, 0, len(leases))
	for _, lease := range leases {
		mac := lease.MacAddr.String()
		if i, ok := indexByMAC[mac]; ok {
			out[i] = lease
			continue
		}
		indexByMAC[mac] = len(out)
		out = append(out, lease)
	}
	return out
}

// Update fetches the current lease table and reconciles it against the
// database. Leases present in the database but missing from the fetch are
// left untouched: the database is an append-only history of every device
// ever seen.
func (m *Monitor) Update(ctx context.Context) error {
	leases, err := m.fetcher.FetchLeases(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch DHCP leases: %w", err)
	}

	known, err := m.db.GetAllClients()
	if err != nil {
		return fmt.Errorf("failed to load clients database: %w", err)
	}

	for _, lease := range dedupLeases(leases) {
		lease.Hostname = m.enrichHostname(ctx, lease)

		var stored *clientsdb.NetClient
		if c, ok := known[lease.MacAddr.String()]; ok {
			stored = &c
		}

		changes := ClassifyLease(lease, stored)
		switch {
		case changes.NewClient:
			if err := m.addNewClient(ctx, lease); err != nil {
				m.log.Warnf("failed to add new client %s: %s", lease.MacAddr, err.Error())
			}
		case changes.Unchanged():
			// nothing to do

		default:
			if err := m.applyChanges(lease, stored, changes); err != nil {
				m.log.Warnf("failed to update client %s: %s", lease.MacAddr, err.Error())
			}
		}
	}

	if m.onUpdate != nil {
		m.onUpdate()
	}
	return nil
}

// enrichHostname falls back to a reverse-DNS lookup when the DHCP client did
// not advertise any hostname to the server.
func (m *Monitor) enrichHostname(ctx context.Context, lease *dnsmasq.Lease) string {
	if lease.Hostname != missingHostnameMarker && lease.Hostname != "" {
		return lease.Hostname
	}
	if m.opts.RevDNS == nil {
		return lease.Hostname
	}

	hostname, err := m.opts.RevDNS.LookupHostname(ctx, lease.IPAddr)
	if err != nil {
		m.log.Warnf("reverse DNS lookup for %s failed: %s", lease.IPAddr, err.Error())
		return lease.Hostname
	}
	if hostname == "" {
		return lease.Hostname
	}
	return hostname
}

// addNewClient inserts a never-seen-before device and sends the notification.
func (m *Monitor) addNewClient(ctx context.Context, lease *dnsmasq.Lease) error {
	vendor := m.lookupVendor(ctx, lease.MacAddr)

	client := clientsdb.NetClient{
		MacAddr:   lease.MacAddr,
		Hostname:  lease.Hostname,
		IP:        lease.IPAddr,
		Expiry:    lease.Expires,
		FirstSeen: time.Now(),
		MacVendor: vendor,
		Notes:     "-",
	}
	if err := m.db.InsertClient(client); err != nil {
		return err
	}

	m.log.Infof("New LAN client found: %s / %s (%s, %s)", lease.MacAddr, lease.Hostname, lease.IPAddr, vendor)

	if m.opts.Notifier.Empty() {
		return nil
	}
	subject := "New LAN client found"
	body := fmt.Sprintf("\n  Hostname:    %s\n  IP address:  %s\n  MAC:         %s\n  MAC vendor:  %s",
		lease.Hostname, lease.IPAddr, lease.MacAddr, vendor)
	if err := m.opts.Notifier.Notify(ctx, subject, body); err != nil {
		// a failed notification must not fail the whole update
		m.log.Warnf("notification error for <%s>: %s", subject, err.Error())
	}
	return nil
}

func (m *Monitor) lookupVendor(ctx context.Context, mac net.HardwareAddr) string {
	if m.opts.OUI == nil {
		return "--none--"
	}
	vendor, err := m.opts.OUI.Lookup(ctx, mac)
	if err != nil {
		m.log.Warnf("OUI lookup for %s failed: %s", mac, err.Error())
		return "--none--"
	}
	return vendor
}

// applyChanges updates the stored record in place, one field at a time, in
// the same manner the original record was logged and stored.
func (m *Monitor) applyChanges(lease *dnsmasq.Lease, stored *clientsdb.NetClient, changes Changes) error {
	if changes.Hostname {
		m.log.Infof("%s / %-20s New hostname: %s", lease.MacAddr, stored.Hostname, lease.Hostname)
		if err := m.db.UpdateHostname(lease.MacAddr, lease.Hostname); err != nil {
			return err
		}
	}
	if changes.IP {
		m.log.Infof("%s / %-20s New IP:       %s", lease.MacAddr, stored.Hostname, lease.IPAddr)
		if err := m.db.UpdateIP(lease.MacAddr, lease.IPAddr); err != nil {
			return err
		}
	}
	if changes.Expiry {
		m.log.Infof("%s / %-20s New expiry:   %s", lease.MacAddr, stored.Hostname, formatExpiry(lease.Expires))
		if err := m.db.UpdateExpiry(lease.MacAddr, lease.Expires); err != nil {
			return err
		}
	}
	return nil
}

// Bootstrap drops any existing table and repopulates it from the current
// lease table of the DHCP server (the --create-db operation).
func (m *Monitor) Bootstrap(ctx context.Context) error {
	leases, err := m.fetcher.FetchLeases(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch DHCP leases: %w", err)
	}

	m.log.Warn("Creating a fresh network clients database table")
	if err := m.db.DropAllClients(); err != nil {
		return err
	}

	count := 0
	for _, lease := range dedupLeases(leases) {
		lease.Hostname = m.enrichHostname(ctx, lease)
		vendor := m.lookupVendor(ctx, lease.MacAddr)
		client := clientsdb.NetClient{
			MacAddr:   lease.MacAddr,
			Hostname:  lease.Hostname,
			IP:        lease.IPAddr,
			Expiry:    lease.Expires,
			FirstSeen: time.Now(),
			MacVendor: vendor,
			Notes:     "-",
		}
		if err := m.db.InsertClient(client); err != nil {
			return err
		}
		count++
		m.log.Infof("  %-25s %-15s %s   %s", lease.Hostname, lease.IPAddr, lease.MacAddr, vendor)
	}

	m.log.Infof("Database table created with  <%d>  clients.", count)
	return nil
}

// RunService runs Update in a loop at the configured interval until the
// context is cancelled. A failed update is logged and retried at the next
// tick.
func (m *Monitor) RunService(ctx context.Context) {
	m.log.Infof("Service mode: updating every %s",
		human_duration.ShortString(m.opts.UpdateInterval, human_duration.Second))

	// first pass right away, then on every tick
	if err := m.Update(ctx); err != nil {
		m.log.Warnf("update failed: %s", err.Error())
	}

	ticker := time.NewTicker(m.opts.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Service loop stopped")
			return
		case <-ticker.C:
			if err := m.Update(ctx); err != nil {
				m.log.Warnf("update failed: %s", err.Error())
			}
		}
	}
}

// AddNote attaches (or replaces) the free-text note of a known client.
func (m *Monitor) AddNote(mac net.HardwareAddr, note string) error {
	client, err := m.db.GetClient(mac)
	if err != nil {
		return err
	}
	if err := m.db.UpdateNotes(mac, note); err != nil {
		return err
	}
	m.log.Infof("Note added for %s / %s:  %s", mac, client.Hostname, note)
	return nil
}

// DeleteClient removes a client record. The only way records ever get deleted.
func (m *Monitor) DeleteClient(mac net.HardwareAddr) error {
	client, err := m.db.GetClient(mac)
	if err != nil {
		return err
	}
	if err := m.db.DeleteClient(mac); err != nil {
		return err
	}
	m.log.Infof("Deleted %s / %s", mac, client.Hostname)
	return nil
}
