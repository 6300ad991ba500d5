// Package broadcast implements the engine's WebSocket telemetry fan-out: a
// hub with register/unregister channels and one buffered send channel per
// client, dropping a tick on a full buffer rather than blocking the tick
// loop. Grounded on the teacher's internal/gateway/hub.go client-map
// pattern and yoghaf-market-indikator's internal/broadcast/server.go
// register/unregister/drop-on-full Hub, which is the closer match for a
// single-input, fan-out-only hub with no per-client subscription filters.
package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"metalindexd/internal/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const clientSendBuffer = 64

// Hub maintains connected WS clients and fans out TickReports.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client

	latest     model.TickReport
	haveLatest bool

	dropsTotal func()
}

// NewHub creates an empty Hub. onDrop, if non-nil, is invoked once per
// message dropped for a slow client's full send buffer (wired to a metrics
// counter by the caller).
func NewHub(onDrop func()) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		dropsTotal: onDrop,
	}
}

// Run drives the hub's register/unregister/broadcast loop. Blocks until
// reportCh is closed.
func (h *Hub) Run(reportCh <-chan model.TickReport) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[broadcast] client connected (%d total)", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[broadcast] client disconnected (%d total)", n)

		case r, ok := <-reportCh:
			if !ok {
				return
			}
			h.mu.Lock()
			h.latest = r
			h.haveLatest = true
			h.mu.Unlock()
			h.fanOut(r)
		}
	}
}

func (h *Hub) fanOut(r model.TickReport) {
	msg, err := json.Marshal(r)
	if err != nil {
		log.Printf("[broadcast] marshal tick report: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if h.dropsTotal != nil {
				h.dropsTotal()
			}
		}
	}
}

// Snapshot returns the most recently broadcast TickReport and whether one
// has occurred yet.
func (h *Hub) Snapshot() (model.TickReport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.haveLatest
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades an HTTP connection and registers the client for live
// tick reports, sending the current snapshot first if one exists.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[broadcast] upgrade: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendBuffer)}

	if snap, ok := h.Snapshot(); ok {
		if msg, err := json.Marshal(snap); err == nil {
			c.send <- msg
		}
	}

	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *client) readPump() {
	defer func() { c.hub.unregister <- c }()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
