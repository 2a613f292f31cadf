package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"1h", time.Hour, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1M", 30 * 24 * time.Hour, false}, // Assuming 30 days in a month
		{"1y", 365 * 24 * time.Hour, false},
		{"-1h", -time.Hour, false},
		{"-1.5h", -90 * time.Minute, false},
		{"-2w", -14 * 24 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"1.5h30m", 120 * time.Minute, false},                 // mixed units
		{"2.5d", 60 * time.Hour, false},                       // decimal days
		{"1.5h30m2s", 120*time.Minute + 2*time.Second, false}, // more complex cases
		{"2D", 48 * time.Hour, false},
		{"1W", 7 * 24 * time.Hour, false},
		{"1Y", 365 * 24 * time.Hour, false},

		// error cases
		{"", 0, true},         // empty string
		{"invalid", 0, true},  // invalid input
		{"1.5h 30m", 0, true}, // space between values
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if (err != nil) != tc.wantErr {
				t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
				return
			}
			if got != tc.expected {
				t.Errorf("ParseDuration(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func parseConfig(t *testing.T, doc string) (*Config, error) {
	t.Helper()
	var cfg Config
	err := yaml.Unmarshal([]byte(doc), &cfg)
	return &cfg, err
}

func TestUnmarshalFullConfig(t *testing.T) {
	doc := `
dhcp_server:
  type: dd-wrt
  dd_wrt:
    host: 192.168.1.1
    key_file: /home/user/.ssh/id_rsa
    connect_timeout_sec: 5
database: /var/lib/routermonitor/clients.sqlite3
update_interval: 30m
sort_by: ip
notifications:
  webhook_url: https://hooks.example.com/lan-alerts
  smtp:
    server: smtp.example.com
    port: 587
    from: router@example.com
    to: [admin@example.com]
dhcp_pools:
  - start: 192.168.1.100
    end: 192.168.1.199
web_ui:
  port: 8080
  refresh_interval_sec: 30
reverse_dns:
  enable: true
  server: 192.168.1.1
`
	cfg, err := parseConfig(t, doc)
	require.NoError(t, err)

	assert.Equal(t, ServerTypeDdwrt, cfg.ServerType)
	assert.Equal(t, "192.168.1.1", cfg.Ddwrt.Host)
	assert.Equal(t, "root", cfg.Ddwrt.Username, "dd-wrt username should default to root")
	assert.Equal(t, 5*time.Second, cfg.Ddwrt.ConnectTimeout)
	assert.Equal(t, "/tmp/dnsmasq.leases", cfg.Ddwrt.LeaseFile, "dd-wrt lease file should get a default")
	assert.Equal(t, "/var/lib/routermonitor/clients.sqlite3", cfg.DatabasePath)
	assert.Equal(t, 30*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, "ip", cfg.SortBy)
	assert.True(t, cfg.OUILookup, "OUI lookups should default to enabled")
	assert.Equal(t, "https://hooks.example.com/lan-alerts", cfg.WebhookURL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, []string{"admin@example.com"}, cfg.SMTP.To)
	require.Len(t, cfg.DhcpPool.Ranges, 1)
	assert.Equal(t, int64(100), cfg.DhcpPool.Size())
	assert.Equal(t, 8080, cfg.WebUIPort)
	assert.Equal(t, 30*time.Second, cfg.WebUIRefreshInterval)
	assert.True(t, cfg.ReverseDNS.Enable)
	assert.Equal(t, 53, cfg.ReverseDNS.Port, "reverse DNS port should default to 53")
}

func TestUnmarshalMinimalConfig(t *testing.T) {
	doc := `
dhcp_server:
  type: dnsmasq
`
	cfg, err := parseConfig(t, doc)
	require.NoError(t, err)

	assert.Equal(t, ServerTypeDnsmasq, cfg.ServerType)
	assert.Equal(t, "/var/lib/misc/dnsmasq.leases", cfg.Dnsmasq.LeaseFile)
	assert.Equal(t, 30*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, DefaultSortMode, cfg.SortBy)
	assert.Equal(t, "routermonitor.sqlite3", cfg.DatabasePath)
	assert.Zero(t, cfg.WebUIPort, "web UI should be disabled by default")
	assert.True(t, cfg.DhcpPool.IsEmpty())
}

func TestUnmarshalInvalidConfigs(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown server type",
			doc: `
dhcp_server:
  type: openwrt
`,
		},
		{
			name: "pfsense without url",
			doc: `
dhcp_server:
  type: pfsense
`,
		},
		{
			name: "dd-wrt without host",
			doc: `
dhcp_server:
  type: dd-wrt
`,
		},
		{
			name: "dd-wrt without credentials",
			doc: `
dhcp_server:
  type: dd-wrt
  dd_wrt:
    host: 192.168.1.1
`,
		},
		{
			name: "bad sort mode",
			doc: `
dhcp_server:
  type: dnsmasq
sort_by: uptime
`,
		},
		{
			name: "bad update interval",
			doc: `
dhcp_server:
  type: dnsmasq
update_interval: whenever
`,
		},
		{
			name: "smtp without recipients",
			doc: `
dhcp_server:
  type: dnsmasq
notifications:
  smtp:
    server: smtp.example.com
    from: router@example.com
`,
		},
		{
			name: "bad pool range",
			doc: `
dhcp_server:
  type: dnsmasq
dhcp_pools:
  - start: not-an-ip
    end: 192.168.1.199
`,
		},
		{
			name: "reverse dns without server",
			doc: `
dhcp_server:
  type: dnsmasq
reverse_dns:
  enable: true
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(t, tc.doc)
			assert.Error(t, err)
		})
	}
}
