package leasefetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"
	"golang.org/x/net/html"

	"github.com/cjnaz/routermonitor/pkg/config"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

// the CSRF token is embedded in a <script> block of every pfSense page
var csrfTokenRe = regexp.MustCompile(`csrfMagicToken = "(.*?)";var`)

// column headers of the pfSense DHCP leases table we care about
const (
	pfColIP       = "IP address"
	pfColMAC      = "MAC address"
	pfColHostname = "Hostname"
	pfColEnd      = "End"
)

// the pfSense leases page shows "n/a" in the End column for static mappings
const pfStaticLeaseMarker = "n/a"

// PfSenseFetcher scrapes the pfSense (v2.4+) DHCP leases status page.
// pfSense has no lease API on older releases, so this logs into the web UI
// (CSRF token + credentials form) and parses the first lease table of the page.
type PfSenseFetcher struct {
	cfg    config.PfSenseConfig
	client *http.Client
	log    *logger.CustomLogger
}

func NewPfSenseFetcher(cfg config.PfSenseConfig, log *logger.CustomLogger) *PfSenseFetcher {
	jar, _ := cookiejar.New(nil)
	return &PfSenseFetcher{
		cfg: cfg,
		client: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				// appliances typically run with a self-signed certificate
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify}, //nolint:gosec
			},
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (f *PfSenseFetcher) FetchLeases(ctx context.Context) ([]*dnsmasq.Lease, error) {
	// first GET picks up the session cookie and the CSRF token of the login form
	body, err := f.get(ctx, f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pfSense at %s, are URL and credentials valid? %w", f.cfg.URL, err)
	}

	csrf := csrfTokenRe.FindStringSubmatch(body)
	if csrf == nil {
		return nil, fmt.Errorf("no CSRF token found in pfSense page %s", f.cfg.URL)
	}

	form := url.Values{
		"__csrf_magic": {csrf[1]},
		"login":        {"Login"},
		"usernamefld":  {f.cfg.Username},
		"passwordfld":  {f.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pfSense login failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// now that the session is authenticated, fetch the leases page for real
	body, err = f.get(ctx, f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pfSense leases page: %w", err)
	}

	return f.parseLeasesPage(body)
}

func (f *PfSenseFetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseLeasesPage extracts the lease records from the first <table> of the
// status_dhcp_leases.php page. Columns are identified by their header text so
// the parse survives column reordering between pfSense releases.
func (f *PfSenseFetcher) parseLeasesPage(page string) ([]*dnsmasq.Lease, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pfSense HTML: %w", err)
	}

	table := findFirstElement(doc, "table")
	if table == nil {
		return nil, fmt.Errorf("no lease table found in pfSense page")
	}

	rows := findAllElements(table, "tr")
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty lease table in pfSense page")
	}

	headers := cellTexts(rows[0])
	var leases []*dnsmasq.Lease
	for _, row := range rows[1:] {
		cells := cellTexts(row)
		rowMap := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				rowMap[h] = cells[i]
			}
		}

		lease, err := f.leaseFromRow(rowMap)
		if err != nil {
			if f.log != nil {
				f.log.Warnf("skipping pfSense lease row: %s", err.Error())
			}
			continue
		}
		leases = append(leases, lease)
	}

	return leases, nil
}

func (f *PfSenseFetcher) leaseFromRow(row map[string]string) (*dnsmasq.Lease, error) {
	mac, err := net.ParseMAC(row[pfColMAC])
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q", row[pfColMAC])
	}
	ip, err := netip.ParseAddr(row[pfColIP])
	if err != nil {
		return nil, fmt.Errorf("invalid IP address %q", row[pfColIP])
	}

	var expires time.Time
	if end := row[pfColEnd]; end != "" && end != pfStaticLeaseMarker {
		expires, err = time.ParseInLocation(f.cfg.LeaseDateFormat, end, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid lease end time %q", end)
		}
	}

	return &dnsmasq.Lease{
		Expires:  expires,
		MacAddr:  mac,
		IPAddr:   ip,
		Hostname: row[pfColHostname],
	}, nil
}

// findFirstElement walks the node tree depth-first and returns the first
// element with the given tag.
func findFirstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAllElements collects every element with the given tag below n, in
// document order.
func findAllElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	if n.Type == html.ElementNode && n.Data == tag {
		out = append(out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, findAllElements(c, tag)...)
	}
	return out
}

// cellTexts returns the trimmed text content of each th/td cell of a table row.
func cellTexts(row *html.Node) []string {
	var cells []string
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
