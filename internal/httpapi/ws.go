package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"memestats-backend/internal/observability"
	"memestats-backend/internal/stats"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 8
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans freshly computed snapshots out to websocket subscribers. Clients
// whose send buffer is full are dropped rather than allowed to stall the
// broadcast.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHub creates an empty Hub. checkOrigin is passed to the websocket
// upgrader; nil allows all origins.
func NewHub(log logrus.FieldLogger, checkOrigin func(*http.Request) bool) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
		log: log,
	}
}

// Handle upgrades the request and subscribes the connection to snapshot
// broadcasts until the peer disconnects.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.add(client)

	go h.writeLoop(client)
	go h.readLoop(client)
}

// Broadcast serializes the snapshot once and queues it to every subscriber.
func (h *Hub) Broadcast(snapshot stats.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.log.WithError(err).Error("marshal snapshot for broadcast")
		return
	}

	h.mu.RLock()
	var slow []*wsClient
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.log.Warn("dropping slow websocket subscriber")
		h.remove(client)
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *Hub) Close(_ context.Context) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.remove(client)
	}
}

func (h *Hub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	observability.SetFeedSubscribers(count)
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	if present {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if present {
		client.conn.Close()
		observability.SetFeedSubscribers(count)
	}
}

// writeLoop drains the client's send channel onto the wire.
func (h *Hub) writeLoop(client *wsClient) {
	for payload := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(client)
			return
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.remove(client)
			return
		}
	}
}
