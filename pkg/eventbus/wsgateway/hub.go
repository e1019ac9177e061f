// 文件: pkg/eventbus/wsgateway/hub.go
// WebSocket transport adapter: fans eventbus.Event out to browser
// clients grouped by user-room/account-room, the same register/
// unregister/broadcast hub and ping/pong writePump/readPump shape as a
// dashboard-broadcast websocket hub, adapted to room-scoped delivery
// instead of an unconditional broadcast to everyone.

package wsgateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itrader/agent/pkg/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one browser's live connection, filtered to the rooms it
// subscribed to at upgrade time.
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
	rooms []eventbus.Room
}

type Hub struct {
	bus *eventbus.Bus
	sub *eventbus.Subscriber

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

func NewHub(bus *eventbus.Bus) *Hub {
	return &Hub{
		bus:        bus,
		sub:        bus.Subscribe(), // hub itself subscribes to every room; clients filter on delivery
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub's event loop; call it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			log.Printf("[WebSocketGateway] client connected, %d total", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			log.Printf("[WebSocketGateway] client disconnected, %d total", len(h.clients))

		case e, ok := <-h.sub.Events():
			if !ok {
				return
			}
			data, err := e.Marshal()
			if err != nil {
				log.Printf("[WebSocketGateway] marshal event: %v", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !subscribedTo(c, e.Room()) {
					continue
				}
				select {
				case c.send <- data:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func subscribedTo(c *Client, room eventbus.Room) bool {
	if len(c.rooms) == 0 {
		return true
	}
	for _, r := range c.rooms {
		if r == room {
			return true
		}
	}
	return false
}

// Upgrade handles one HTTP connection upgrade and registers the
// resulting Client for the given rooms; it blocks until the connection
// closes.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, rooms []eventbus.Room) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h, rooms: rooms}
	h.register <- c

	go c.writePump()
	c.readPump()
	return nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
