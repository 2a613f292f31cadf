package monitor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	human_duration "github.com/davidbanham/human_duration/v3"

	"github.com/cjnaz/routermonitor/pkg/clientsdb"
	"github.com/cjnaz/routermonitor/pkg/config"
)

const staticLeaseMarker = "static lease"

// ListOptions selects sorting and filtering of the listing operations.
type ListOptions struct {
	// SortBy is one of config.SortModes; empty means the configured default.
	SortBy string
	// Search filters rows to those containing this text in any column,
	// case-insensitively. Empty means no filtering.
	Search string
}

// ListKnownClients prints the whole clients database as a table, one device
// per row, newest information first-hand from the database (no fetch).
func (m *Monitor) ListKnownClients(w io.Writer, opts ListOptions) error {
	clients, err := m.db.GetAllClients()
	if err != nil {
		return err
	}

	rows := make([]clientsdb.NetClient, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, c)
	}
	sortClients(rows, m.sortMode(opts))

	now := time.Now()
	count := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Hostname\tFirst seen\tCurrent IP\tExpiry\tMAC\tMAC vendor\tNotes")
	for _, c := range rows {
		cols := []string{
			c.Hostname,
			formatFirstSeen(c.FirstSeen, now),
			m.formatIP(c),
			formatExpiryWithAge(c.Expiry, now),
			c.MacAddr.String(),
			c.MacVendor,
			c.Notes,
		}
		if !rowMatches(cols, opts.Search) {
			continue
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
		count++
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "  <%d>  known clients.\n", count)
	return nil
}

// ListServerLeases fetches the current lease table from the DHCP server and
// prints it, without touching the database.
func (m *Monitor) ListServerLeases(ctx context.Context, w io.Writer, opts ListOptions) error {
	leases, err := m.fetcher.FetchLeases(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch DHCP leases: %w", err)
	}

	mode := m.sortMode(opts)
	switch mode {
	case "hostname", "ip", "expiry", "mac":
		// sortable on live leases
	default:
		// first_seen, vendor and notes only exist in the database
		m.log.Warnf("sort mode %q not available for the DHCP server listing, using %q", mode, config.DefaultSortMode)
		mode = config.DefaultSortMode
	}

	rows := make([]clientsdb.NetClient, 0, len(leases))
	for _, lease := range leases {
		rows = append(rows, clientsdb.NetClient{
			MacAddr:  lease.MacAddr,
			Hostname: lease.Hostname,
			IP:       lease.IPAddr,
			Expiry:   lease.Expires,
		})
	}
	sortClients(rows, mode)

	now := time.Now()
	count := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Hostname\tCurrent IP\tExpiry\tMAC")
	for _, c := range rows {
		cols := []string{
			c.Hostname,
			m.formatIP(c),
			formatExpiryWithAge(c.Expiry, now),
			c.MacAddr.String(),
		}
		if !rowMatches(cols, opts.Search) {
			continue
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
		count++
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "  <%d>  active leases on the DHCP server.\n", count)
	return nil
}

func (m *Monitor) sortMode(opts ListOptions) string {
	if opts.SortBy != "" {
		return opts.SortBy
	}
	if m.opts.SortBy != "" {
		return m.opts.SortBy
	}
	return config.DefaultSortMode
}

// formatIP renders the IP address, flagging addresses outside the configured
// DHCP pool ranges (typically static reservations on an unexpected subnet).
func (m *Monitor) formatIP(c clientsdb.NetClient) string {
	if m.opts.Pool.IsEmpty() || m.opts.Pool.Contains(c.IP) {
		return c.IP.String()
	}
	return c.IP.String() + " (outside pool)"
}

func formatFirstSeen(t time.Time, now time.Time) string {
	age := now.Sub(t)
	if age < time.Minute {
		return t.Local().Format(time.DateTime)
	}
	return fmt.Sprintf("%s (%s ago)",
		t.Local().Format(time.DateTime), human_duration.ShortString(age, human_duration.Minute))
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return staticLeaseMarker
	}
	return t.Local().Format(time.DateTime)
}

func formatExpiryWithAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return staticLeaseMarker
	}
	left := t.Sub(now)
	if left <= 0 {
		return formatExpiry(t) + " (expired)"
	}
	if left < time.Minute {
		return formatExpiry(t)
	}
	return fmt.Sprintf("%s (in %s)", formatExpiry(t), human_duration.ShortString(left, human_duration.Minute))
}

// rowMatches tells whether any rendered column contains the search text.
func rowMatches(cols []string, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, col := range cols {
		if strings.Contains(strings.ToLower(col), search) {
			return true
		}
	}
	return false
}

// sortClients orders rows according to one of config.SortModes. Sorting is
// stable with hostname as implicit tiebreak via the initial hostname sort.
func sortClients(rows []clientsdb.NetClient, mode string) {
	byHostname := func(i, j int) bool {
		return strings.ToLower(rows[i].Hostname) < strings.ToLower(rows[j].Hostname)
	}
	sort.SliceStable(rows, byHostname)
	if mode == "hostname" {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch mode {
		case "ip":
			return a.IP.Less(b.IP)
		case "first_seen":
			return a.FirstSeen.Before(b.FirstSeen)
		case "expiry":
			// static leases (zero expiry) sort last
			return expirySortKey(a.Expiry) < expirySortKey(b.Expiry)
		case "mac":
			return a.MacAddr.String() < b.MacAddr.String()
		case "vendor":
			return strings.ToLower(a.MacVendor) < strings.ToLower(b.MacVendor)
		case "notes":
			return strings.ToLower(a.Notes) < strings.ToLower(b.Notes)
		}
		return false
	})
}

func expirySortKey(t time.Time) int64 {
	if t.IsZero() {
		return 1<<63 - 1
	}
	return t.Unix()
}
