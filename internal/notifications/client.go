package notifications

import (
	"encoding/json"
	"time"

	"mainq/internal/middleware"
	"mainq/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	// keepalive must fire before idleTimeout expires on the peer's side.
	keepalive = idleTimeout * 9 / 10

	// Browsers only send app-level pings; anything bigger is a misbehaving client.
	maxFrameBytes = 1024

	sendBuffer = 64
)

var (
	dropNotice = mustEvent(EventMessagesDropped, map[string]string{"reason": "buffer_full"})
	pongFrame  = mustEvent(EventPong, nil)
)

func mustEvent(kind string, payload any) []byte {
	b, err := json.Marshal(Event{Type: kind, Payload: payload})
	if err != nil {
		panic(err)
	}
	return b
}

// Client is one websocket subscriber. UserID is empty for anonymous
// subscribers, who only receive catalog events.
type Client struct {
	hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) extendDeadline() error {
	return c.Conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

// ReadPump reads client frames until the connection closes, then removes the
// client from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameBytes)
	_ = c.extendDeadline()
	c.Conn.SetPongHandler(func(string) error { return c.extendDeadline() })

	for {
		kind, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket closed unexpectedly", "user_id", c.UserID, "error", err)
			}
			return
		}
		if kind == websocket.TextMessage {
			_ = c.extendDeadline()
			c.handleFrame(frame)
		}
	}
}

// handleFrame answers app-level pings. Other frames are ignored; clients
// change state through the REST API.
func (c *Client) handleFrame(frame []byte) {
	var in struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &in); err != nil {
		middleware.Logger.Debug("ignoring malformed websocket frame", "user_id", c.UserID)
		return
	}
	if in.Type == EventPing {
		c.TrySend(pongFrame)
	}
}

// WritePump drains Send onto the connection and emits protocol pings.
// It exits once Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(keepalive)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.Conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, open := <-c.Send:
			if !open {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. On a full queue the message is
// dropped and a messages_dropped event is queued instead if there is room,
// so the browser knows to re-fetch.
func (c *Client) TrySend(message []byte) {
	// Send is closed once the client is unregistered.
	defer func() { _ = recover() }()

	select {
	case c.Send <- message:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.Inc()
	middleware.Logger.Warn("websocket queue full, message dropped", "user_id", c.UserID)
	select {
	case c.Send <- dropNotice:
	default:
	}
}
