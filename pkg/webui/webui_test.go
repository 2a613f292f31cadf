package webui

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjnaz/routermonitor/pkg/clientsdb"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

var testLogger = logger.NewCustomLogger("test")

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mac1, err := net.ParseMAC("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	mac2, err := net.ParseMAC("aa:bb:cc:dd:ee:02")
	require.NoError(t, err)

	db := clientsdb.NewTestDBWithData([]clientsdb.NetClient{
		{
			MacAddr:   mac1,
			Hostname:  "printer",
			IP:        netip.MustParseAddr("192.168.1.30"),
			Expiry:    time.Unix(1700000000, 0),
			FirstSeen: time.Unix(1600000000, 0),
			MacVendor: "Zebra Technologies",
			Notes:     "office",
		},
		{
			MacAddr:   mac2,
			Hostname:  "nas",
			IP:        netip.MustParseAddr("192.168.1.5"),
			FirstSeen: time.Unix(1600000000, 0),
			MacVendor: "Synology Incorporated",
			Notes:     "-",
		},
	})
	t.Cleanup(func() { _ = db.Close() })

	return NewServer(testLogger, &db, 0, 0)
}

func TestGenerateWebSocketMessage(t *testing.T) {
	s := newTestServer(t)

	msg := s.generateWebSocketMessage()
	require.Len(t, msg.Clients, 2)

	// sorted by IP
	assert.Equal(t, "nas", msg.Clients[0].Hostname)
	assert.Equal(t, "printer", msg.Clients[1].Hostname)
	assert.NotZero(t, msg.GeneratedAt)
}

func TestWebSocketInitialPush(t *testing.T) {
	s := newTestServer(t)

	server := httptest.NewServer(http.HandlerFunc(s.handleWebSocketConn))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
		_ = ws.Close()
	}()

	var msg struct {
		Clients []struct {
			MacAddr  string `json:"mac_addr"`
			Hostname string `json:"hostname"`
			IP       string `json:"ip_addr"`
			Expiry   int64  `json:"expiry"`
		} `json:"clients"`
		GeneratedAt int64 `json:"generated_at"`
	}
	require.NoError(t, ws.ReadJSON(&msg))

	require.Len(t, msg.Clients, 2)
	assert.Equal(t, "nas", msg.Clients[0].Hostname)
	assert.Equal(t, "192.168.1.5", msg.Clients[0].IP)
	assert.Zero(t, msg.Clients[0].Expiry) // static lease
	assert.Equal(t, "aa:bb:cc:dd:ee:01", msg.Clients[1].MacAddr)
}

func TestRenderPage(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.renderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Known network clients")
	assert.Contains(t, rec.Body.String(), websocketRelativeURL)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	s := newTestServer(t)

	// no broadcast loop is draining the channel here
	for i := 0; i < 10; i++ {
		s.Broadcast()
	}
}
