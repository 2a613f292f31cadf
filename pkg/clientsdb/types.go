package clientsdb

import (
	"encoding/json"
	"net"
	"net/netip"
	"time"
)

// NetClient represents a single device ever observed on the network.
// The device might be currently holding a DHCP lease or not; rows are kept as
// history even after the lease expired.
type NetClient struct {
	MacAddr   net.HardwareAddr
	Hostname  string
	IP        netip.Addr
	Expiry    time.Time // zero value means a static lease (never expires)
	FirstSeen time.Time
	MacVendor string
	Notes     string
}

// IsStaticLease tells whether this client holds an address reservation rather
// than a dynamic lease.
func (c NetClient) IsStaticLease() bool {
	return c.Expiry.IsZero()
}

// MarshalJSON customizes the JSON serialization for NetClient
func (c NetClient) MarshalJSON() ([]byte, error) {
	var expiry int64
	if !c.Expiry.IsZero() {
		expiry = c.Expiry.Unix()
	}
	return json.Marshal(&struct {
		MacAddr   string `json:"mac_addr"`
		Hostname  string `json:"hostname"`
		IP        string `json:"ip_addr"`
		Expiry    int64  `json:"expiry"` // unix time; 0 means static lease
		FirstSeen int64  `json:"first_seen"`
		MacVendor string `json:"mac_vendor"`
		Notes     string `json:"notes"`
	}{
		MacAddr:   c.MacAddr.String(),
		Hostname:  c.Hostname,
		IP:        c.IP.String(),
		Expiry:    expiry,
		FirstSeen: c.FirstSeen.Unix(),
		MacVendor: c.MacVendor,
		Notes:     c.Notes,
	})
}
