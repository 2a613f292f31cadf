// Package webui serves a small live web page showing the known network
// clients table. The page opens a websocket and receives the refreshed table
// after every monitor update cycle, plus on a periodic keepalive refresh.
package webui

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjnaz/routermonitor/pkg/clientsdb"
	"github.com/cjnaz/routermonitor/pkg/logger"
)

const websocketRelativeURL = "/ws"

// WebSocketMessage is the payload pushed to every connected browser.
type WebSocketMessage struct {
	Clients     []clientsdb.NetClient `json:"clients"`
	GeneratedAt int64                 `json:"generated_at"`
}

// Server is the optional web UI of the monitor. It only reads from the
// clients database; all writes keep going through the monitor.
type Server struct {
	log             *logger.CustomLogger
	db              *clientsdb.ClientsDB
	port            int
	refreshInterval time.Duration

	server       http.Server
	upgrader     websocket.Upgrader
	htmlTemplate *htmltemplate.Template

	// map of connected websockets
	clients     map[*websocket.Conn]bool
	clientsLock sync.Mutex

	// channel used to broadcast tabular data from backend->frontend
	broadcastCh chan struct{}
}

func NewServer(log *logger.CustomLogger, db *clientsdb.ClientsDB, port int, refreshInterval time.Duration) *Server {
	return &Server{
		log:             log,
		db:              db,
		port:            port,
		refreshInterval: refreshInterval,
		htmlTemplate:    htmltemplate.Must(htmltemplate.New("index").Parse(indexPageTemplate)),
		clients:         make(map[*websocket.Conn]bool),
		broadcastCh:     make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		server: http.Server{
			ReadHeaderTimeout: 3 * time.Second,
		},
	}
}

// Broadcast schedules a push of the current table to all connected
// websockets. Never blocks, so it is safe to call from the monitor's update
// hook.
func (s *Server) Broadcast() {
	select {
	case s.broadcastCh <- struct{}{}:
	default:
		// a broadcast is already pending
	}
}

func (s *Server) generateWebSocketMessage() WebSocketMessage {
	all, err := s.db.GetAllClients()
	if err != nil {
		s.log.Warnf("failed to load clients database for the web UI: %s", err.Error())
		all = map[string]clientsdb.NetClient{}
	}

	clients := make([]clientsdb.NetClient, 0, len(all))
	for _, c := range all {
		clients = append(clients, c)
	}

	// sort the slice by IP (the user can sort again later based on some other criteria)
	slices.SortFunc(clients, func(a, b clientsdb.NetClient) int {
		return a.IP.Compare(b.IP)
	})

	return WebSocketMessage{
		Clients:     clients,
		GeneratedAt: time.Now().Unix(),
	}
}

// WebSocket connection handler
func (s *Server) handleWebSocketConn(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("failed to upgrade websocket connection: %s", err.Error())
		return
	}
	defer func() {
		_ = ws.Close()
	}()

	msg := s.generateWebSocketMessage()
	s.log.Infof("Received new websocket client: pushing %d known clients to it", len(msg.Clients))

	// register new client and push the current status right away
	s.clientsLock.Lock()
	s.clients[ws] = true
	if err := ws.WriteJSON(msg); err != nil {
		s.log.Warnf("failed to push initial data to the new websocket: %s", err.Error())
		// keep going, the broadcast loop will drop the connection if the
		// error keeps popping up
	}
	s.clientsLock.Unlock()

	// listen till the end of the websocket
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			s.clientsLock.Lock()
			delete(s.clients, ws)
			s.clientsLock.Unlock()
			return
		}
	}
}

// Broadcast updater: any update posted on the broadcastCh is broadcasted to all clients
func (s *Server) broadcastUpdatesToClients(ctx context.Context) {
	var tickerCh <-chan time.Time
	if s.refreshInterval > 0 {
		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()
		tickerCh = ticker.C
	} else {
		// refresh is disabled, create a channel that will never get a message
		tickerCh = make(<-chan time.Time)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.broadcastCh:
			// the clients database has changed after an update cycle

		case <-tickerCh:
			// push whatever data we already have; this triggers a refresh of
			// the countdowns on the page and keeps the websocket TCP
			// connection alive
		}

		s.clientsLock.Lock()
		if len(s.clients) == 0 {
			s.clientsLock.Unlock()
			continue
		}
		msg := s.generateWebSocketMessage()
		for client := range s.clients {
			if err := client.WriteJSON(msg); err != nil {
				s.log.Warnf("failed writing JSON to WebSocket: %s", err.Error())
				_ = client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsLock.Unlock()
	}
}

// Render HTML page
func (s *Server) renderPage(w http.ResponseWriter, _ *http.Request) {
	// the websocket URL is relative: the browser picks 'wss' or 'ws' based on
	// the scheme it used to load the page
	data := struct {
		WebSocketURI string
	}{
		WebSocketURI: websocketRelativeURL,
	}
	if err := s.htmlTemplate.Execute(w, data); err != nil {
		s.log.Warnf("error while rendering template: %s", err.Error())
	}
}

// ListenAndServe starts the web server and the websocket broadcast loop and
// blocks until the context is cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.renderPage)
	mux.HandleFunc(websocketRelativeURL, s.handleWebSocketConn)

	go s.broadcastUpdatesToClients(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log.Infof("Starting web UI server on port %d", s.port)
	s.server.Addr = fmt.Sprintf(":%d", s.port)
	s.server.Handler = mux
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
