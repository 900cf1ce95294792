package notifications

import (
	"encoding/json"
	"time"

	"socialhub/internal/middleware"
	"socialhub/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Keepalive timings. The server pings every pingPeriod and drops a peer
// that has not answered within pongWait.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// The stream is push only; peers send nothing larger than control frames.
	maxInboundBytes = 1024
	sendBuffer      = 64
)

// EventNotificationsDropped tells a slow client it missed events and should
// reload its feed and counters.
const EventNotificationsDropped = "notifications_dropped"

var dropNotice = mustEvent(EventNotificationsDropped, map[string]string{"reason": "buffer_full"})

func mustEvent(eventType string, payload any) []byte {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		panic(err)
	}
	return b
}

// Client is one websocket connection of a user.
type Client struct {
	hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// ReadPump keeps the read deadline moving on pongs and unregisters the
// client when the peer goes away. Inbound data frames are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInboundBytes)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("Notification socket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

// WritePump delivers queued events and pings until Send is closed by the
// hub or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var err error
		select {
		case event, ok := <-c.Send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, event)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// TrySend queues event without blocking. A full buffer drops the event and
// queues a notifications_dropped notice instead when there is room.
func (c *Client) TrySend(event []byte) {
	// Send may already be closed by UnregisterClient.
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- event:
		return
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	middleware.Logger.Warn("Notification buffer full, dropping event", "user_id", c.UserID)
	select {
	case c.Send <- dropNotice:
	default:
	}
}
