// Package config loads and validates the routermonitor YAML configuration file.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjnaz/routermonitor/pkg/ippool"
)

// ServerType identifies which kind of DHCP server the monitor polls.
type ServerType string

const (
	ServerTypePfSense ServerType = "pfsense"
	ServerTypeDdwrt   ServerType = "dd-wrt"
	ServerTypeDnsmasq ServerType = "dnsmasq"
)

// SortModes lists the accepted values for the sort_by setting and the --sort-by flag.
var SortModes = []string{"hostname", "ip", "first_seen", "expiry", "mac", "vendor", "notes"}

// DefaultSortMode applies when neither the config file nor the command line specify one.
const DefaultSortMode = "hostname"

const (
	defaultUpdateInterval  = 30 * time.Minute
	defaultDdwrtLeaseFile  = "/tmp/dnsmasq.leases"
	defaultDdwrtTimeout    = 2 * time.Second
	defaultDnsmasqLeases   = "/var/lib/misc/dnsmasq.leases"
	defaultPfSenseDateFmt  = "2006/01/02 15:04:05"
	defaultDNSPort         = 53
	defaultDatabasePath    = "routermonitor.sqlite3"
	defaultWebUIRefreshSec = 0 // disabled
)

// PfSenseConfig holds the settings needed to scrape the pfSense DHCP leases status page.
type PfSenseConfig struct {
	URL           string
	Username      string
	Password      string
	SkipTLSVerify bool
	// LeaseDateFormat is the go time layout matching the "End" column of the
	// leases page, e.g. "2006/01/02 15:04:05"
	LeaseDateFormat string
}

// DdwrtConfig holds the settings needed to read the dnsmasq leases file over SSH.
type DdwrtConfig struct {
	Host           string
	Username       string
	Password       string
	KeyFile        string
	LeaseFile      string
	ConnectTimeout time.Duration
}

// DnsmasqConfig holds the settings for reading a local dnsmasq leases file.
type DnsmasqConfig struct {
	LeaseFile string
}

// SMTPConfig holds the settings for the email notification channel.
type SMTPConfig struct {
	Server   string
	Port     int
	From     string
	To       []string
	Username string
	Password string
}

// ReverseDNSConfig enables hostname enrichment through PTR queries against the
// router's own DNS server when the DHCP client did not advertise a hostname.
type ReverseDNSConfig struct {
	Enable bool
	Server string
	Port   int
}

// Config is the full routermonitor configuration.
type Config struct {
	ServerType ServerType
	PfSense    PfSenseConfig
	Ddwrt      DdwrtConfig
	Dnsmasq    DnsmasqConfig

	DatabasePath   string
	UpdateInterval time.Duration
	SortBy         string
	OUILookup      bool

	WebhookURL string
	SMTP       SMTPConfig

	DhcpPool ippool.Pool

	WebUIPort            int
	WebUIRefreshInterval time.Duration

	ReverseDNS ReverseDNSConfig
}

// UnmarshalYAML reads the raw YAML document and converts it into the validated
// Config instance. Only fields relevant to the monitor behavior are listed here;
// unknown keys are ignored.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DhcpServer struct {
			Type string `yaml:"type"`

			PfSense struct {
				URL             string `yaml:"url"`
				Username        string `yaml:"username"`
				Password        string `yaml:"password"`
				SkipTLSVerify   bool   `yaml:"skip_tls_verify"`
				LeaseDateFormat string `yaml:"lease_date_format"`
			} `yaml:"pfsense"`

			Ddwrt struct {
				Host              string `yaml:"host"`
				Username          string `yaml:"username"`
				Password          string `yaml:"password"`
				KeyFile           string `yaml:"key_file"`
				LeaseFile         string `yaml:"lease_file"`
				ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
			} `yaml:"dd_wrt"`

			Dnsmasq struct {
				LeaseFile string `yaml:"lease_file"`
			} `yaml:"dnsmasq"`
		} `yaml:"dhcp_server"`

		Database       string `yaml:"database"`
		UpdateInterval string `yaml:"update_interval"`
		SortBy         string `yaml:"sort_by"`
		OUILookup      *bool  `yaml:"oui_lookup"`

		Notifications struct {
			WebhookURL string `yaml:"webhook_url"`
			SMTP       struct {
				Server   string   `yaml:"server"`
				Port     int      `yaml:"port"`
				From     string   `yaml:"from"`
				To       []string `yaml:"to"`
				Username string   `yaml:"username"`
				Password string   `yaml:"password"`
			} `yaml:"smtp"`
		} `yaml:"notifications"`

		DhcpPools []struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"dhcp_pools"`

		WebUI struct {
			Port               int `yaml:"port"`
			RefreshIntervalSec int `yaml:"refresh_interval_sec"`
		} `yaml:"web_ui"`

		ReverseDNS struct {
			Enable bool   `yaml:"enable"`
			Server string `yaml:"server"`
			Port   int    `yaml:"port"`
		} `yaml:"reverse_dns"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	// DHCP server section
	c.ServerType = ServerType(raw.DhcpServer.Type)
	switch c.ServerType {
	case ServerTypePfSense:
		if raw.DhcpServer.PfSense.URL == "" {
			return fmt.Errorf("dhcp_server.pfsense.url is required when type is %q", ServerTypePfSense)
		}
	case ServerTypeDdwrt:
		if raw.DhcpServer.Ddwrt.Host == "" {
			return fmt.Errorf("dhcp_server.dd_wrt.host is required when type is %q", ServerTypeDdwrt)
		}
	case ServerTypeDnsmasq:
		// the lease file has a sensible default
	default:
		return fmt.Errorf("invalid dhcp_server.type %q: must be one of %q, %q, %q",
			raw.DhcpServer.Type, ServerTypePfSense, ServerTypeDdwrt, ServerTypeDnsmasq)
	}

	c.PfSense = PfSenseConfig{
		URL:             raw.DhcpServer.PfSense.URL,
		Username:        raw.DhcpServer.PfSense.Username,
		Password:        raw.DhcpServer.PfSense.Password,
		SkipTLSVerify:   raw.DhcpServer.PfSense.SkipTLSVerify,
		LeaseDateFormat: raw.DhcpServer.PfSense.LeaseDateFormat,
	}
	if c.PfSense.LeaseDateFormat == "" {
		c.PfSense.LeaseDateFormat = defaultPfSenseDateFmt
	}

	c.Ddwrt = DdwrtConfig{
		Host:           raw.DhcpServer.Ddwrt.Host,
		Username:       raw.DhcpServer.Ddwrt.Username,
		Password:       raw.DhcpServer.Ddwrt.Password,
		KeyFile:        raw.DhcpServer.Ddwrt.KeyFile,
		LeaseFile:      raw.DhcpServer.Ddwrt.LeaseFile,
		ConnectTimeout: time.Duration(raw.DhcpServer.Ddwrt.ConnectTimeoutSec) * time.Second,
	}
	if c.Ddwrt.Username == "" {
		c.Ddwrt.Username = "root"
	}
	if c.Ddwrt.LeaseFile == "" {
		c.Ddwrt.LeaseFile = defaultDdwrtLeaseFile
	}
	if c.Ddwrt.ConnectTimeout == 0 {
		c.Ddwrt.ConnectTimeout = defaultDdwrtTimeout
	}
	if c.ServerType == ServerTypeDdwrt && c.Ddwrt.Password == "" && c.Ddwrt.KeyFile == "" {
		return fmt.Errorf("dhcp_server.dd_wrt needs either a password or a key_file")
	}

	c.Dnsmasq = DnsmasqConfig{LeaseFile: raw.DhcpServer.Dnsmasq.LeaseFile}
	if c.Dnsmasq.LeaseFile == "" {
		c.Dnsmasq.LeaseFile = defaultDnsmasqLeases
	}

	// general settings
	c.DatabasePath = raw.Database
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}

	if raw.UpdateInterval == "" {
		c.UpdateInterval = defaultUpdateInterval
	} else {
		interval, err := ParseDuration(raw.UpdateInterval)
		if err != nil {
			return fmt.Errorf("invalid update_interval %q: %w", raw.UpdateInterval, err)
		}
		if interval <= 0 {
			return fmt.Errorf("update_interval must be positive, got %q", raw.UpdateInterval)
		}
		c.UpdateInterval = interval
	}

	c.SortBy = raw.SortBy
	if c.SortBy == "" {
		c.SortBy = DefaultSortMode
	}
	if !slices.Contains(SortModes, c.SortBy) {
		return fmt.Errorf("invalid sort_by %q: must be one of %v", raw.SortBy, SortModes)
	}

	// OUI lookups default to enabled
	c.OUILookup = true
	if raw.OUILookup != nil {
		c.OUILookup = *raw.OUILookup
	}

	// notifications
	c.WebhookURL = raw.Notifications.WebhookURL
	c.SMTP = SMTPConfig{
		Server:   raw.Notifications.SMTP.Server,
		Port:     raw.Notifications.SMTP.Port,
		From:     raw.Notifications.SMTP.From,
		To:       raw.Notifications.SMTP.To,
		Username: raw.Notifications.SMTP.Username,
		Password: raw.Notifications.SMTP.Password,
	}
	if c.SMTP.Server != "" {
		if c.SMTP.Port == 0 {
			c.SMTP.Port = 25
		}
		if c.SMTP.From == "" || len(c.SMTP.To) == 0 {
			return fmt.Errorf("notifications.smtp needs both 'from' and 'to' when a server is set")
		}
	}

	// optional DHCP pool ranges
	for _, p := range raw.DhcpPools {
		r := ippool.NewRangeFromString(p.Start, p.End)
		if !r.IsValid() {
			return fmt.Errorf("invalid DHCP pool range %s-%s", p.Start, p.End)
		}
		c.DhcpPool.Ranges = append(c.DhcpPool.Ranges, r)
	}

	// optional web UI
	if raw.WebUI.Port < 0 || raw.WebUI.Port > 65535 {
		return fmt.Errorf("invalid web_ui.port %d", raw.WebUI.Port)
	}
	c.WebUIPort = raw.WebUI.Port
	refreshSec := raw.WebUI.RefreshIntervalSec
	if refreshSec == 0 {
		refreshSec = defaultWebUIRefreshSec
	}
	c.WebUIRefreshInterval = time.Duration(refreshSec) * time.Second

	// optional reverse-DNS hostname enrichment
	c.ReverseDNS = ReverseDNSConfig{
		Enable: raw.ReverseDNS.Enable,
		Server: raw.ReverseDNS.Server,
		Port:   raw.ReverseDNS.Port,
	}
	if c.ReverseDNS.Enable {
		if c.ReverseDNS.Server == "" {
			return fmt.Errorf("reverse_dns.server is required when reverse_dns.enable is true")
		}
		if c.ReverseDNS.Port == 0 {
			c.ReverseDNS.Port = defaultDNSPort
		}
	}

	return nil
}

// Load reads and parses the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
