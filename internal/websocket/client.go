package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	ID   string // User ID
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   userID,
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Detach(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", zap.String("user_id", c.ID), zap.Error(err))
			}
			break
		}

		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.Hub.SendToUser(c.ID, errorMessage("bad_request", "Invalid message format"))
			continue
		}

		c.handleIncomingMessage(context.Background(), incoming)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.log.Debug("websocket write error", zap.String("user_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleIncomingMessage processes client events. Only typing indicators
// are accepted; messages are always posted over HTTP.
func (c *Client) handleIncomingMessage(ctx context.Context, msg IncomingMessage) {
	switch msg.Type {
	case EventTypingStart, EventTypingStop:
		c.handleTyping(ctx, msg.Type, msg.Payload)
	default:
		c.Hub.SendToUser(c.ID, errorMessage("unknown_event", "Unknown event type"))
	}
}

// handleTyping relays a typing indicator to the rest of the group when the
// sender may write there
func (c *Client) handleTyping(ctx context.Context, event EventType, payload map[string]interface{}) {
	groupID, _ := payload["groupId"].(string)
	if groupID == "" {
		return
	}

	ok, err := c.Hub.members.IsMember(ctx, groupID, c.ID)
	if err != nil || !ok {
		c.Hub.SendToUser(c.ID, errorMessage("forbidden", "Not a member of this group"))
		return
	}

	c.Hub.BroadcastToGroup(ctx, groupID, WSMessage{
		Type: event,
		Payload: TypingPayload{
			UserID:  c.ID,
			GroupID: groupID,
		},
		Timestamp: time.Now(),
	}, c.ID)
}

func errorMessage(code, message string) WSMessage {
	return WSMessage{
		Type:      EventError,
		Payload:   ErrorPayload{Code: code, Message: message},
		Timestamp: time.Now(),
	}
}
