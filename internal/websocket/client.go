package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS and auth middleware in front
		return true
	},
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client identifier
	ID string

	conn *websocket.Conn

	// Buffered channel of outbound messages, one JSON document per entry
	send chan []byte

	hub    *Hub
	logger *logrus.Logger

	UserAgent   string    `json:"user_agent"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`

	mu     sync.Mutex
	closed bool
	// Event type prefixes the client wants; empty means all
	events []string
	// Tenant filter; empty means all tenants
	tenantID string
}

// HandleWebSocket upgrades the request and attaches the client to the hub
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, hub.cfg.BufferSize),
		hub:         hub,
		logger:      hub.logger,
		UserAgent:   r.Header.Get("User-Agent"),
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	// Subscription can be given up front as query parameters
	if events := r.URL.Query().Get("events"); events != "" {
		client.subscribe(strings.Split(events, ","), r.URL.Query().Get("tenant"))
	} else if tenant := r.URL.Query().Get("tenant"); tenant != "" {
		client.subscribe(nil, tenant)
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleWebSocketGin is a Gin-compatible wrapper for HandleWebSocket
func HandleWebSocketGin(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleWebSocket(hub, c.Writer, c.Request)
	}
}

func (c *Client) pongWait() time.Duration {
	return c.hub.cfg.PingInterval * 2
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket connection error")
			}
			break
		}

		c.hub.messageReceived()
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := c.hub.cfg.WriteTimeout

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(raw []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.WithError(err).Debug("Failed to unmarshal WebSocket message")
		c.enqueue(errorMessage("invalid message").ToJSON())
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		var req subscribeRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.enqueue(errorMessage("invalid subscription").ToJSON())
				return
			}
		}
		c.subscribe(req.Events, req.TenantID)

		events, tenant := c.subscription()
		ack := Message{
			Type: MessageTypeSubscribed,
			Data: map[string]interface{}{
				"events":    events,
				"tenant_id": tenant,
			},
		}
		c.enqueue(ack.ToJSON())

	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong, Data: map[string]interface{}{}}.ToJSON())

	default:
		c.logger.WithField("message_type", msg.Type).Warn("Unknown WebSocket message type")
		c.enqueue(errorMessage("unknown message type").ToJSON())
	}
}

func (c *Client) subscribe(events []string, tenantID string) {
	cleaned := make([]string, 0, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}

	c.mu.Lock()
	c.events = cleaned
	c.tenantID = tenantID
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"client_id": c.ID,
		"events":    cleaned,
		"tenant_id": tenantID,
	}).Debug("Client subscription updated")
}

func (c *Client) subscription() ([]string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...), c.tenantID
}

// wants reports whether a broadcast message matches the client's filters
func (c *Client) wants(msg Message) bool {
	if msg.Type == MessageTypeHeartbeat {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tenantID != "" && msg.TenantID != c.tenantID {
		return false
	}
	if len(c.events) == 0 {
		return true
	}
	for _, prefix := range c.events {
		if strings.HasPrefix(msg.Type, prefix) {
			return true
		}
	}
	return false
}

// enqueue hands data to the write pump without blocking. It returns false
// when the buffer is full or the client is closed.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
