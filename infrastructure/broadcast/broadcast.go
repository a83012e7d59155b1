package broadcast

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// Event is one lifecycle notification pushed to realtime subscribers.
type Event struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub fans lifecycle events out to websocket subscribers. Broadcast is
// fire-and-forget: a slow subscriber drops events rather than blocking the
// orchestrator.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan Event)}
}

// Broadcast enqueues the event for every connected subscriber.
func (h *Hub) Broadcast(event string, payload map[string]any) {
	evt := Event{Event: event, Payload: payload, Timestamp: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- evt:
		default:
			logrus.Debugf("Dropping event %s for slow subscriber %s", event, conn.RemoteAddr())
		}
	}
}

// Handler returns the fiber handler serving the /ws subscription endpoint.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ch := make(chan Event, 32)

		h.mu.Lock()
		h.clients[conn] = ch
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()

		done := make(chan struct{})
		go func() {
			// Reads are discarded; the socket exists for server push. The
			// read loop still runs to notice the peer going away.
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case evt := <-ch:
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}

// Upgrade gates the websocket route: non-websocket requests get 426.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
