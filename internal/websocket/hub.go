package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"campushub/server/internal/metrics"
	"campushub/server/internal/models"

	"go.uber.org/zap"
)

// Members is the membership lookup the hub needs to route events
type Members interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	IsMember(ctx context.Context, groupID, identityID string) (bool, error)
}

// Hub maintains the set of active clients and routes group events
type Hub struct {
	// Registered clients mapped by user ID
	Clients map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Closed once Run has returned
	done chan struct{}

	members Members
	log     *zap.Logger

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(members Members, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		members:    members,
		log:        log,
	}
	return h
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// Attach hands a client to the hub. It returns false once the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach removes a client. After shutdown it is a no-op.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// If user already has a connection, close the old one
	if existing, ok := h.Clients[client.ID]; ok {
		close(existing.Send)
	} else {
		metrics.Connections.Inc()
	}

	h.Clients[client.ID] = client
	h.log.Debug("websocket client connected", zap.String("user_id", client.ID))
}

// unregisterClient removes a client unless it was already replaced
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.Clients[client.ID]; ok && current == client {
		delete(h.Clients, client.ID)
		close(client.Send)
		metrics.Connections.Dec()
		h.log.Debug("websocket client disconnected", zap.String("user_id", client.ID))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.Clients {
		close(client.Send)
		delete(h.Clients, id)
		metrics.Connections.Dec()
	}
}

// send queues data for one user. Must be called with the lock held.
// A full buffer drops the event; clients catch up on their next poll.
func (h *Hub) send(userID string, data []byte) {
	client, ok := h.Clients[userID]
	if !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.log.Warn("websocket send buffer full", zap.String("user_id", userID))
	}
}

// BroadcastToGroup sends an event to the online members of a group. Every
// connected client counts as a member of the default group.
func (h *Hub) BroadcastToGroup(ctx context.Context, groupID string, message WSMessage, excludeUserID string) {
	group, err := h.members.GetGroup(ctx, groupID)
	if err != nil {
		h.log.Warn("failed to resolve group for broadcast", zap.String("group_id", groupID), zap.Error(err))
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if group.IsDefault {
		for userID := range h.Clients {
			if userID != excludeUserID {
				h.send(userID, data)
			}
		}
		return
	}
	for _, userID := range group.Members {
		if userID != excludeUserID {
			h.send(userID, data)
		}
	}
}

// NotifyGroup nudges a group's online members to poll after msg was appended
func (h *Hub) NotifyGroup(ctx context.Context, msg *models.Message) {
	h.BroadcastToGroup(ctx, msg.GroupKey(), WSMessage{
		Type: EventGroupActivity,
		Payload: ActivityPayload{
			GroupID:   msg.GroupKey(),
			MessageID: msg.ID,
			CreatedAt: msg.CreatedAt,
		},
		Timestamp: time.Now(),
	}, msg.AuthorID)
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID string, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.send(userID, data)
}

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.Clients[userID]
	return ok
}

// GetOnlineCount returns the number of currently connected clients
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.Clients)
}
