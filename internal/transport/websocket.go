// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"formant/internal/control"
	"formant/internal/log"

	"github.com/gorilla/websocket"
)

// defaultWriteWait bounds one write to one client.
const defaultWriteWait = 2 * time.Second

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// WebSocketTransport broadcasts reports and events as JSON to every client
// connected on /ws. Extra handlers (such as /metrics) can share its server.
type WebSocketTransport struct {
	addr      string
	writeWait time.Duration
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	mux       *http.ServeMux
	server    *http.Server
	listener  net.Listener
	wg        sync.WaitGroup
}

// NewWebSocketTransport creates a transport that will listen on addr. Call
// Handle to add routes, then Start.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:      addr,
		writeWait: defaultWriteWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local monitoring tool; any origin may connect.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
		mux:       http.NewServeMux(),
	}
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)
	return wst
}

// Handle registers an extra handler on the transport's server.
func (wst *WebSocketTransport) Handle(pattern string, h http.Handler) {
	wst.mux.Handle(pattern, h)
}

// Start binds the listener and begins serving. Bind errors are returned.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln
	wst.server = &http.Server{Handler: wst.mux}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		log.Infof("WebSocketTransport: Starting WebSocket server on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener != nil {
		return wst.listener.Addr().String()
	}
	return wst.addr
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients never send; a read error means they went away.
	go func() {
		if _, _, err := conn.ReadMessage(); err != nil {
			wst.clientsMu.Lock()
			delete(wst.clients, conn)
			total := len(wst.clients)
			wst.clientsMu.Unlock()
			conn.Close()
			log.Infof("WebSocketTransport: Client disconnected, total: %d", total)
		}
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	var targets []*websocket.Conn
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			// Writes run outside the lock so a slow client cannot hold up
			// connects and disconnects; the deadline bounds each write.
			wst.clientsMu.Lock()
			targets = targets[:0]
			for client := range wst.clients {
				targets = append(targets, client)
			}
			wst.clientsMu.Unlock()

			for _, client := range targets {
				_ = client.SetWriteDeadline(time.Now().Add(wst.writeWait))
				if err := client.WriteJSON(data); err != nil {
					log.Warnf("WebSocketTransport: Error sending to client: %v", err)
					wst.drop(client)
				}
			}
		}
	}
}

func (wst *WebSocketTransport) drop(client *websocket.Conn) {
	wst.clientsMu.Lock()
	delete(wst.clients, client)
	wst.clientsMu.Unlock()
	client.Close()
}

// Send queues data for broadcast. A full queue drops the message.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		log.Debugf("WebSocketTransport: Broadcast queue full, dropping %T", data)
	}
	return nil
}

// Report implements control.Reporter.
func (wst *WebSocketTransport) Report(r control.Report) error {
	return wst.Send(NewReportMessage(r))
}

// Event implements control.EventSink.
func (wst *WebSocketTransport) Event(e control.Event) {
	_ = wst.Send(EventMessage{Type: TypeEvent, Event: e})
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interfaces
var (
	_ Transport         = (*WebSocketTransport)(nil)
	_ control.Reporter  = (*WebSocketTransport)(nil)
	_ control.EventSink = (*WebSocketTransport)(nil)
)
