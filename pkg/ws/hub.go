package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types pushed to connected clients.
const (
	MsgTypeNotification = "notification"
	MsgTypeUnreadCount  = "unread_count"
	MsgTypeDashboard    = "dashboard_stats"
	MsgTypePong         = "pong"
)

// AdminDashboardGroup receives live stats and admin alerts.
const AdminDashboardGroup = "admin_dashboard"

// NotificationGroup is the per-user notification channel name.
func NotificationGroup(userID string) string {
	return "notifications_" + userID
}

// Message is the envelope sent over the socket.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type groupMessage struct {
	group   string
	payload []byte
}

// Client is one WebSocket connection subscribed to a set of groups.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	groups    []string
	send      chan []byte
	onMessage func([]byte)
}

// Hub routes messages to clients by group membership.
type Hub struct {
	logger     *slog.Logger
	clients    map[*Client]struct{}
	groups     map[string]map[*Client]struct{}
	broadcast  chan groupMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub builds an empty hub. Call Run before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		groups:     make(map[string]map[*Client]struct{}),
		broadcast:  make(chan groupMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			for _, group := range client.groups {
				if h.groups[group] == nil {
					h.groups[group] = make(map[*Client]struct{})
				}
				h.groups[group][client] = struct{}{}
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client connected", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropClientLocked(client)
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client disconnected", "total_clients", total)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.groups[msg.group] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer, drop the connection
					h.dropClientLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for _, group := range client.groups {
		if members := h.groups[group]; members != nil {
			delete(members, client)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	close(client.send)
}

// Publish sends a typed message to every member of a group.
func (h *Hub) Publish(group, msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("marshal ws message", "err", err, "type", msgType)
		return
	}
	select {
	case h.broadcast <- groupMessage{group: group, payload: payload}:
	default:
		h.logger.Warn("ws broadcast buffer full, dropping message", "group", group, "type", msgType)
	}
}

// GroupSize reports the member count of a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// ClientCount reports connected clients across all groups.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient wraps a connection subscribed to the given groups. onMessage,
// when non-nil, receives every inbound frame.
func NewClient(hub *Hub, conn *websocket.Conn, groups []string, onMessage func([]byte)) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		groups:    groups,
		send:      make(chan []byte, 64),
		onMessage: onMessage,
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// Unregister removes the client from the hub.
func (c *Client) Unregister() {
	c.hub.unregister <- c
}

// ReadPump consumes inbound frames until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(payload)
		}
	}
}

// WritePump flushes outbound messages and keeps the connection alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(45 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reply queues a message directly to this client, bypassing groups.
func (c *Client) Reply(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
