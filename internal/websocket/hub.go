package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/chorewheel/internal/chore"
)

// Event is a real-time notification of a chore lifecycle change. Events
// are scoped to a family; clients only see their own family's activity.
type Event struct {
	Type    string         `json:"type"`
	ChoreID int64          `json:"chore_id,omitempty"`
	Status  chore.Status   `json:"status,omitempty"`
	ActorID int64          `json:"actor_id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Event types emitted by the lifecycle handlers and the sweeper.
const (
	EventChoreCreated   = "chore_created"
	EventChoreAssigned  = "chore_assigned"
	EventChoreAccepted  = "chore_accepted"
	EventChoreDeclined  = "chore_declined"
	EventChoreSubmitted = "chore_submitted"
	EventChoreApproved  = "chore_approved"
	EventChoreRejected  = "chore_rejected"
	EventChorePenalized = "chore_penalized"
	EventOfferExpired   = "offer_expired"
)

// NewEvent builds an Event for a chore lifecycle change.
func NewEvent(eventType string, choreID int64, status chore.Status, actorID int64) Event {
	return Event{
		Type:    eventType,
		ChoreID: choreID,
		Status:  status,
		ActorID: actorID,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts
// family-scoped events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every client of the given family.
func (h *Hub) Broadcast(familyID int64, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.familyID != familyID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
