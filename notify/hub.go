package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventCartUpdated        = "cartUpdated"
	EventSyncError          = "syncError"
	EventQuoteUpdated       = "quoteUpdated"
	EventOrderPlaced        = "orderPlaced"
	EventNotificationFailed = "notificationFailed"
	EventNotification       = "notification"
	EventNewOrder           = "newOrder"
	EventStatusChanged      = "prepareStatus"
)

// Event is one message pushed to websocket clients.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type Publisher interface {
	PublishToUser(userID string, event Event)
	PublishToRole(role string, event Event)
}

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

type client struct {
	conn   *websocket.Conn
	userID string
	role   string
	send   chan []byte
}

// Hub fans events out to connected websocket clients by user and role. Slow
// clients whose buffer is full are disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

// Serve registers conn for the user and blocks until the client disconnects.
func (h *Hub) Serve(conn *websocket.Conn, userID, role string) {
	c := &client{conn: conn, userID: userID, role: role, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
			h.remove(c)
			c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
	c.conn.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) PublishToUser(userID string, event Event) {
	h.publish(event, func(c *client) bool { return c.userID == userID })
}

func (h *Hub) PublishToRole(role string, event Event) {
	h.publish(event, func(c *client) bool { return c.role == role })
}

func (h *Hub) publish(event Event, match func(*client) bool) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal websocket event", zap.String("event", event.Event), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("websocket client too slow, dropping", zap.String("user_id", c.userID))
			delete(h.clients, c)
			close(c.send)
		}
	}
}
