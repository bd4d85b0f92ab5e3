// Package realtime pushes change events to connected clients over websockets.
// Each user may hold several connections (phone and desktop); events for a
// user are delivered to all of them, and administrator connections receive
// every schedule and trip event. Slow consumers are dropped rather than
// allowed to stall the hub.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/example/transport-scheduler/internal/application"
)

// Hub tracks active websocket clients grouped by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}
	admins  map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[string]map[*Client]struct{}),
		admins:  make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	set, ok := h.byUser[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[client.userID] = set
	}
	set[client] = struct{}{}
	if client.isAdmin {
		h.admins[client] = struct{}{}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	delete(h.admins, client)
	if set, ok := h.byUser[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	close(client.send)
}

// PublishTripEvent delivers the event to every connection the user holds and
// to every administrator connection. Implements application.EventPublisher.
func (h *Hub) PublishTripEvent(ctx context.Context, event application.TripEvent) error {
	payload, err := json.Marshal(envelope{Type: "trip_update", Payload: event})
	if err != nil {
		return err
	}
	h.sendToUserAndAdmins(event.UserID, payload)
	return nil
}

// PublishScheduleEvent delivers the event to the owning user's connections and
// to every administrator connection.
func (h *Hub) PublishScheduleEvent(ctx context.Context, event application.ScheduleEvent) error {
	payload, err := json.Marshal(envelope{Type: "schedule_update", Payload: event})
	if err != nil {
		return err
	}
	h.sendToUserAndAdmins(event.UserID, payload)
	return nil
}

// PublishChangeRequestEvent delivers the event to the owning user's
// connections.
func (h *Hub) PublishChangeRequestEvent(ctx context.Context, event application.ChangeRequestEvent) error {
	payload, err := json.Marshal(envelope{Type: "change_request_update", Payload: event})
	if err != nil {
		return err
	}
	h.sendToUser(event.UserID, payload)
	return nil
}

// PublishNotificationEvent delivers the event to the owning user's
// connections.
func (h *Hub) PublishNotificationEvent(ctx context.Context, event application.NotificationEvent) error {
	payload, err := json.Marshal(envelope{Type: "notification", Payload: event})
	if err != nil {
		return err
	}
	h.sendToUser(event.UserID, payload)
	return nil
}

// Broadcast delivers a payload to every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	stalled := h.dispatch(h.clients, payload)
	h.mu.RUnlock()

	h.drop(stalled)
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	h.mu.RLock()
	stalled := h.dispatch(h.byUser[userID], payload)
	h.mu.RUnlock()

	h.drop(stalled)
}

// sendToUserAndAdmins delivers one copy per connection; a connection held by
// an administrator who also owns the event is not sent a duplicate.
func (h *Hub) sendToUserAndAdmins(userID string, payload []byte) {
	h.mu.RLock()
	targets := make(map[*Client]struct{}, len(h.byUser[userID])+len(h.admins))
	for client := range h.byUser[userID] {
		targets[client] = struct{}{}
	}
	for client := range h.admins {
		targets[client] = struct{}{}
	}
	stalled := h.dispatch(targets, payload)
	h.mu.RUnlock()

	h.drop(stalled)
}

// dispatch queues the payload without blocking. Callers must hold the read
// lock; clients whose buffers are full are returned for removal.
func (h *Hub) dispatch(clients map[*Client]struct{}, payload []byte) []*Client {
	var stalled []*Client
	for client := range clients {
		select {
		case client.send <- payload:
		default:
			stalled = append(stalled, client)
		}
	}
	return stalled
}

func (h *Hub) drop(stalled []*Client) {
	for _, client := range stalled {
		h.logger.Warn("dropping slow websocket client", "user_id", client.userID)
		h.remove(client)
	}
}

// ConnectionCount reports the number of active clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
