package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/models"
)

const broadcastBuffer = 64

// Hub maintains the set of active dashboard clients and fans alert events
// out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered", zap.String("remote_addr", client.RemoteAddr()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("WebSocket client unregistered", zap.String("remote_addr", client.RemoteAddr()))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.logger.Warn("WebSocket client send buffer full, removing",
						zap.String("remote_addr", client.RemoteAddr()))
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// RegisterClient hands a new client to the hub. It returns false once the
// hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Attach registers conn as a dashboard client and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn) {
	client := NewClient(h, conn)
	if !h.RegisterClient(client) {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message is the envelope every broadcast uses.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// PublishEvent queues an alert event for broadcast. Events are dropped when
// the queue is full so ingestion never waits on slow dashboards.
func (h *Hub) PublishEvent(_ context.Context, event models.AlertEvent) error {
	data, err := json.Marshal(Message{Type: event.Type, Payload: event})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping event",
			zap.String("type", event.Type), zap.String("alert_id", event.Alert.ID))
	}
	return nil
}
