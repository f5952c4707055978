// Package realtime distributes triage events to connected WebSocket clients.
// It implements a hub-and-spoke pattern: every session is joined to its
// facility and user rooms at registration, and may additionally follow
// individual triage cases.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/edtriage/internal/auth"
)

// Event is a single real-time notification sent to WebSocket clients.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound message from a WebSocket client. Clients may
// only follow or unfollow triage rooms; facility and user rooms are assigned
// from the verified identity and never client-controlled.
type ClientMessage struct {
	Action string   `json:"action"`
	Rooms  []string `json:"rooms"`
}

// Session is one connected WebSocket client.
type Session struct {
	ID       string
	Identity *auth.Identity
	Send     chan []byte

	rooms []string
}

// Room name constructors.
func FacilityRoom(facilityID string) string { return "facility:" + facilityID }
func UserRoom(userID string) string         { return "user:" + userID }
func TriageRoom(triageID string) string     { return "triage:" + triageID }

// Hub tracks sessions and their room memberships. All operations are safe for
// concurrent use.
type Hub struct {
	logger  log.Logger
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[*Session]struct{}
	rooms    map[string]map[*Session]struct{} // room -> member set
}

// NewHub creates a Hub. logger and metrics may be nil.
func NewHub(logger log.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// Register adds a session and joins it to its facility and user rooms.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s] = struct{}{}
	if s.Identity.FacilityID != "" {
		h.join(s, FacilityRoom(s.Identity.FacilityID))
	}
	if s.Identity.UserID != "" {
		h.join(s, UserRoom(s.Identity.UserID))
	}

	if h.metrics != nil {
		h.metrics.Sessions.Inc()
	}
}

// Unregister removes a session from all rooms and closes its Send channel.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}

	for _, room := range s.rooms {
		h.leave(s, room)
	}
	s.rooms = nil
	delete(h.sessions, s)
	close(s.Send)

	if h.metrics != nil {
		h.metrics.Sessions.Dec()
	}
}

// Follow joins the session to the given triage rooms. Non-triage rooms are
// ignored.
func (h *Hub) Follow(s *Session, rooms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	for _, room := range rooms {
		if !strings.HasPrefix(room, "triage:") {
			continue
		}
		h.join(s, room)
	}
}

// Unfollow removes the session from the given triage rooms.
func (h *Hub) Unfollow(s *Session, rooms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range rooms {
		if !strings.HasPrefix(room, "triage:") {
			continue
		}
		h.leave(s, room)
		s.rooms = removeRoom(s.rooms, room)
	}
}

// ProcessMessage dispatches an inbound client message.
func (h *Hub) ProcessMessage(s *Session, msg ClientMessage) {
	switch msg.Action {
	case "follow":
		h.Follow(s, msg.Rooms)
	case "unfollow":
		h.Unfollow(s, msg.Rooms)
	}
}

// Broadcast delivers an event to every member of its room. Delivery is
// non-blocking: a session with a full buffer misses the event rather than
// stalling the sender.
func (h *Hub) Broadcast(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(ctx, err, "marshal realtime event", "type", event.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[event.Room]
	if !ok {
		return
	}

	dropped := 0
	for s := range members {
		select {
		case s.Send <- data:
		default:
			dropped++
		}
	}

	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(event.Type).Inc()
	}
	if dropped > 0 {
		h.logger.Warn(ctx, "dropped realtime event for slow sessions",
			"type", event.Type,
			"room", event.Room,
			"dropped", dropped,
		)
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RoomCount returns the number of members in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// join adds the session to a room. Caller holds the write lock.
func (h *Hub) join(s *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	if _, ok := members[s]; ok {
		return
	}
	members[s] = struct{}{}
	s.rooms = append(s.rooms, room)
}

// leave removes the session from a room. Caller holds the write lock.
func (h *Hub) leave(s *Session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func removeRoom(rooms []string, room string) []string {
	out := rooms[:0]
	for _, r := range rooms {
		if r != room {
			out = append(out, r)
		}
	}
	return out
}
