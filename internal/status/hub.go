// Package status implements the websocket status feed [spec §4 supplemented
// feature: live status push], adapted from the teacher's
// handler/websocket.go hub/client pattern.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans a notification's status transitions out to subscribed
// websocket clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Update
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	mu         sync.RWMutex
}

// Client is one subscribed websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	filter *Filter
}

// Filter narrows which notifications a Client receives updates for. A nil
// filter, or one with every field empty, receives everything.
type Filter struct {
	NotificationIDs []uuid.UUID      `json:"notification_ids,omitempty"`
	Channels        []domain.Channel `json:"channels,omitempty"`
}

// Update is the JSON frame pushed to every matching client.
type Update struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
	Timestamp    time.Time            `json:"timestamp"`
}

// SubscribeMessage is the client->server control frame.
type SubscribeMessage struct {
	Action string `json:"action"`
	Filter Filter `json:"filter"`
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Update, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run is the hub's single-goroutine event loop; call it once as a
// background goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("status client connected", slog.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("status client disconnected", slog.String("client_id", client.id))

		case update := <-h.broadcast:
			message, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("failed to marshal status update", slog.String("error", err.Error()))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if client.shouldReceive(update.Notification) {
					select {
					case client.send <- message:
					default:
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues n's current state for delivery to matching clients.
// Non-blocking: under sustained overload an update is dropped rather than
// stalling the caller (Dispatcher.Deliver/Submit).
func (h *Hub) Broadcast(n *domain.Notification) {
	update := &Update{Type: "status_update", Notification: n, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- update:
	default:
		h.logger.Warn("status broadcast channel full, dropping update")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) shouldReceive(n *domain.Notification) bool {
	if c.filter == nil {
		return true
	}
	if len(c.filter.NotificationIDs) == 0 && len(c.filter.Channels) == 0 {
		return true
	}

	for _, id := range c.filter.NotificationIDs {
		if id == n.ID {
			return true
		}
	}
	for _, ch := range c.filter.Channels {
		if ch == n.Channel {
			return true
		}
	}
	return false
}

// Handler upgrades GET /ws and registers the resulting Client with Hub.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Error("failed to upgrade websocket", slog.String("error", err.Error()))
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 256),
			id:   uuid.New().String(),
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read error", slog.String("error", err.Error()))
			}
			break
		}

		var subMsg SubscribeMessage
		if err := json.Unmarshal(message, &subMsg); err != nil {
			continue
		}

		switch subMsg.Action {
		case "subscribe":
			c.filter = &subMsg.Filter
		case "unsubscribe":
			c.filter = nil
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
