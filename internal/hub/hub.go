package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	conn  *websocket.Conn
	orgID string

	// Serializes writes; gorilla/websocket allows at most one
	// concurrent writer per connection.
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans activity events out to connected board clients, grouped by
// organization.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

func (h *Hub) Add(connID, orgID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = &client{conn: conn, orgID: orgID}
	log.Printf("Board client %s connected to org %s. Total clients: %d", connID, orgID, len(h.clients))
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; ok {
		delete(h.clients, connID)
		log.Printf("Board client %s disconnected. Total clients: %d", connID, len(h.clients))
	}
}

// BroadcastOrg sends the payload to every client watching the
// organization. Write failures evict the client.
func (h *Hub) BroadcastOrg(orgID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("WARN hub: marshal broadcast: %v", err)
		return
	}

	h.mu.RLock()
	var stale []string
	for connID, c := range h.clients {
		if c.orgID != orgID {
			continue
		}
		if err := c.write(data); err != nil {
			stale = append(stale, connID)
		}
	}
	h.mu.RUnlock()

	for _, connID := range stale {
		h.Remove(connID)
	}
}

// CloseAll shuts every connection down; used during server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, connID)
	}
}
