package clientsdb

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/netip"
	"time"

	// import sqlite3 driver, so that database/sql package will know how to deal with "sqlite3" type
	_ "github.com/mattn/go-sqlite3"
)

// ErrClientNotFound is returned by operations targeting a MAC address that has
// no row in the database.
var ErrClientNotFound = errors.New("client not found")

const createTableQuery = `
CREATE TABLE IF NOT EXISTS net_clients (
	mac_addr TEXT PRIMARY KEY,
	hostname TEXT,
	ip_addr TEXT,
	expiry INT,
	first_seen INT,
	mac_vendor TEXT,
	notes TEXT
);
`

// ClientsDB manages the database operations for network clients.
type ClientsDB struct {
	DB *sql.DB
}

// NewClientsDB opens (creating it if needed) the sqlite database at dbPath and
// makes sure the net_clients table exists.
func NewClientsDB(dbPath string) (*ClientsDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create net_clients table: %w", err)
	}

	return &ClientsDB{DB: db}, nil
}

// Close releases the underlying database handle.
func (d *ClientsDB) Close() error {
	return d.DB.Close()
}

// DropAllClients removes the whole net_clients table and recreates it empty.
// Used by the --create-db operation to start from a fresh baseline.
func (d *ClientsDB) DropAllClients() error {
	if _, err := d.DB.Exec(`DROP TABLE IF EXISTS net_clients`); err != nil {
		return fmt.Errorf("failed to drop net_clients table: %w", err)
	}
	if _, err := d.DB.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to recreate net_clients table: %w", err)
	}
	return nil
}

// InsertClient inserts a new network client into the database.
// Inserting a MAC address already present is an error: the MAC is the unique key.
func (d *ClientsDB) InsertClient(client NetClient) error {
	insertQuery := `
	INSERT INTO net_clients (mac_addr, hostname, ip_addr, expiry, first_seen, mac_vendor, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`

	var expiry int64
	if !client.Expiry.IsZero() {
		expiry = client.Expiry.Unix()
	}

	_, err := d.DB.Exec(insertQuery,
		client.MacAddr.String(), client.Hostname, client.IP.String(),
		expiry, client.FirstSeen.Unix(), client.MacVendor, client.Notes)
	if err != nil {
		return err
	}

	return nil
}

// GetClient retrieves a network client by its MAC address.
func (d *ClientsDB) GetClient(macAddr net.HardwareAddr) (*NetClient, error) {
	query := `SELECT mac_addr, hostname, ip_addr, expiry, first_seen, mac_vendor, notes
		FROM net_clients WHERE mac_addr = ?`
	row := d.DB.QueryRow(query, macAddr.String())

	client, err := scanClient(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrClientNotFound, macAddr)
		}
		return nil, err
	}
	return client, nil
}

// GetAllClients returns every row of the database as a map keyed by the
// string form of the MAC address (net.HardwareAddr is not a valid map key type).
func (d *ClientsDB) GetAllClients() (map[string]NetClient, error) {
	rows, err := d.DB.Query(`SELECT mac_addr, hostname, ip_addr, expiry, first_seen, mac_vendor, notes
		FROM net_clients`)
	if err != nil {
		return nil, fmt.Errorf("failed to query net_clients: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	clients := make(map[string]NetClient)
	for rows.Next() {
		client, err := scanClient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		clients[client.MacAddr.String()] = *client
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clients, nil
}

// UpdateHostname replaces the stored hostname of an existing client.
func (d *ClientsDB) UpdateHostname(macAddr net.HardwareAddr, hostname string) error {
	return d.updateField(macAddr, `UPDATE net_clients SET hostname = ? WHERE mac_addr = ?`, hostname)
}

// UpdateIP replaces the stored IP address of an existing client.
func (d *ClientsDB) UpdateIP(macAddr net.HardwareAddr, ip netip.Addr) error {
	return d.updateField(macAddr, `UPDATE net_clients SET ip_addr = ? WHERE mac_addr = ?`, ip.String())
}

// UpdateExpiry replaces the stored lease expiry of an existing client.
// A zero time marks the lease as static.
func (d *ClientsDB) UpdateExpiry(macAddr net.HardwareAddr, expiry time.Time) error {
	var unix int64
	if !expiry.IsZero() {
		unix = expiry.Unix()
	}
	return d.updateField(macAddr, `UPDATE net_clients SET expiry = ? WHERE mac_addr = ?`, unix)
}

// UpdateNotes replaces the free-text note attached to an existing client.
func (d *ClientsDB) UpdateNotes(macAddr net.HardwareAddr, notes string) error {
	return d.updateField(macAddr, `UPDATE net_clients SET notes = ? WHERE mac_addr = ?`, notes)
}

// DeleteClient removes a client row. This is the only way a record ever
// leaves the database.
func (d *ClientsDB) DeleteClient(macAddr net.HardwareAddr) error {
	res, err := d.DB.Exec(`DELETE FROM net_clients WHERE mac_addr = ?`, macAddr.String())
	if err != nil {
		return err
	}
	return checkAffected(res, macAddr)
}

func (d *ClientsDB) updateField(macAddr net.HardwareAddr, query string, value any) error {
	res, err := d.DB.Exec(query, value, macAddr.String())
	if err != nil {
		return err
	}
	return checkAffected(res, macAddr)
}

func checkAffected(res sql.Result, macAddr net.HardwareAddr) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrClientNotFound, macAddr)
	}
	return nil
}

// scanClient converts one row into a NetClient; works both for sql.Row and sql.Rows.
func scanClient(scan func(dest ...any) error) (*NetClient, error) {
	var client NetClient
	var mac, ip string
	var expiry, firstSeen int64

	if err := scan(&mac, &client.Hostname, &ip, &expiry, &firstSeen, &client.MacVendor, &client.Notes); err != nil {
		return nil, err
	}

	var err error
	client.MacAddr, err = net.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	client.IP, err = netip.ParseAddr(ip)
	if err != nil {
		return nil, err
	}

	if expiry != 0 {
		client.Expiry = time.Unix(expiry, 0)
	}
	client.FirstSeen = time.Unix(firstSeen, 0)

	return &client, nil
}

// NewTestDB returns an in-memory DB for testing
func NewTestDB() ClientsDB {
	db, err := NewClientsDB(":memory:")
	if err != nil {
		log.Fatal("Failed to initialize test database")
	}
	return *db
}

// NewTestDBWithData returns an in-memory DB for testing, pre-populated with the given clients
func NewTestDBWithData(clientsInDB []NetClient) ClientsDB {
	db := NewTestDB()

	for _, client := range clientsInDB {
		err := db.InsertClient(client)
		if err != nil {
			log.Fatal("Failed to initialize test database")
		}
	}
	return db
}
