package dashboard

import (
	"sync"

	"github.com/run365/dashboard-go/internal/metrics"
)

// Hub fans snapshots out to the streams watching a view
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// Client is one connected stream
type Client struct {
	Key  string
	Send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Register(key string) *Client {
	client := &Client{
		Key:  key,
		Send: make(chan []byte, 16),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[key] == nil {
		h.clients[key] = map[*Client]struct{}{}
	}
	h.clients[key][client] = struct{}{}
	metrics.WSConnections.Inc()
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.Key)
	}
	close(client.Send)
	metrics.WSConnections.Dec()
}

// Watched reports whether any stream is registered for key
func (h *Hub) Watched(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key]) > 0
}

// Broadcast queues payload for every stream of key. Slow streams drop it.
func (h *Hub) Broadcast(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[key] {
		select {
		case client.Send <- payload:
		default:
			metrics.WSMessagesDropped.Inc()
		}
	}
}

// Send queues payload for a single stream
func (h *Hub) Send(client *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.Key][client]; !ok {
		return false
	}
	select {
	case client.Send <- payload:
		return true
	default:
		metrics.WSMessagesDropped.Inc()
		return false
	}
}
