package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event is one market activity notification pushed to websocket
// subscribers.
type Event struct {
	Type     string      `json:"type"`
	ColonyID string      `json:"colony_id,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Time     time.Time   `json:"time"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards connect cross-origin; auth lives upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHub fans market events out to connected websocket clients. A slow
// client is dropped rather than allowed to back up the broadcast path.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]chan Event)}
}

// Broadcast queues the event for every connected client.
func (hub *EventHub) Broadcast(ev Event) {
	ev.Time = time.Now().UTC()
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn, ch := range hub.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(hub.clients, conn)
			conn.Close()
		}
	}
}

func (hub *EventHub) add(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 32)
	hub.mu.Lock()
	hub.clients[conn] = ch
	hub.mu.Unlock()
	return ch
}

func (hub *EventHub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	if ch, ok := hub.clients[conn]; ok {
		close(ch)
		delete(hub.clients, conn)
	}
	hub.mu.Unlock()
	conn.Close()
}

// ServeEvents upgrades the request and streams events until the client
// goes away.
func (h *APIHandler) ServeEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	ch := h.events.add(conn)

	// Reader goroutine only notices disconnects; clients do not send.
	go func() {
		defer h.events.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			h.events.remove(conn)
			return
		}
	}
}
