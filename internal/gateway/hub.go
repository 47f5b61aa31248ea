package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients and the Redis PubSub subscription that
// feeds them order events.
type Hub struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a Hub over a connected Redis client.
func NewHub(rdb *goredis.Client) *Hub {
	return &Hub{
		rdb:     rdb,
		clients: make(map[*Client]bool),
	}
}

// Run subscribes to all per-account order channels and routes messages to
// connected clients. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	slog.Info("order event hub subscribed", "pattern", channelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

// broadcast fans one event out to every client watching that account.
// Slow clients are skipped, never waited on.
func (h *Hub) broadcast(channel string, data []byte) {
	clientCode := strings.TrimPrefix(channel, channelPrefix)
	envelope, _ := json.Marshal(map[string]any{
		"channel": channel,
		"data":    json.RawMessage(data),
		"ts":      time.Now().Format(time.RFC3339Nano),
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.watches(clientCode) {
			continue
		}
		select {
		case client.send <- envelope:
		default:
		}
	}
}

// HandleWS registers an upgraded connection. An empty clientCode subscribes
// to every account's events.
func (h *Hub) HandleWS(conn *websocket.Conn, clientCode string) {
	client := &Client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, 256),
		hub:        h,
		clientCode: clientCode,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client connected", "id", client.id, "client", clientCode, "total", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
