/*
Package clientsdb implements the persisted table of network clients ever observed
on the DHCP server, stored in a local sqlite3 database.

Q: Why do we need this database at all and can't just rely on the DHCP server lease table?
A: The two solve different problems: the DHCP server only knows about _current_ leases.
If a client fails to renew its lease, or stays powered off for a while, its entry
disappears from the server lease table. The clients DB instead maintains an history of
_any_ client that ever appeared on the network: entries are added the first time a MAC
address shows up and are never deleted automatically, only by explicit user action.
That history is what makes "a new device just joined the LAN" detectable.

Q: What is the key of the table?
A: The MAC address. An IP address or hostname may move between devices over time;
the hardware address is the only stable identifier a DHCP lease carries.

Q: Which fields are immutable?
A: first_seen is set once when the row is created. mac_vendor (the OUI lookup result)
is resolved once at creation time and never refreshed. Everything else (hostname, IP,
expiry, notes) may be updated in place.
*/
package clientsdb
