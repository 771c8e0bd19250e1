package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quocanhngo/lighttalk/internal/apperror"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 32 << 10

	sendBuffer = 256
)

// Client represents a single WebSocket connection
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	UserID    int64
	SessionID string

	// subscription id -> destination, guarded by hub.mu
	subs map[string]string
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
		subs:      make(map[string]string),
	}
}

// enqueue never blocks; false means the buffer is full
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// FrameHandler processes one frame read from a client
type FrameHandler func(client *Client, frame ClientFrame)

// ReadPump pumps frames from the WebSocket connection to handler.
// Runs in a per-client goroutine.
func (c *Client) ReadPump(handler FrameHandler) {
	defer func() {
		c.hub.Unregister(c)
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
				c.hub.logger.Warn("websocket read error", "user_id", c.UserID, "error", err)
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.hub.reply(c, ServerFrame{
				Command: CommandError,
				Code:    apperror.InvalidInput.Code,
				Message: "malformed frame",
			})
			continue
		}

		if handler != nil {
			handler(c, frame)
		}
	}
}

// WritePump pumps frames from the hub to the WebSocket connection, one
// frame per WebSocket message. Runs in a per-client goroutine.
func (c *Client) WritePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
