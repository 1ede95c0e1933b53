package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

type HubOptions struct {
	// LegacyEvents also emits each event under its legacy name.
	LegacyEvents bool
	// SignalOnly strips payloads so clients refetch over HTTP.
	SignalOnly bool
}

// Hub tracks room membership of the sessions connected to this instance.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	opts     HubOptions
}

func NewHub(opts HubOptions) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
		opts:     opts,
	}
}

func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Session]struct{})
	}
	h.rooms[room][s] = struct{}{}

	if h.sessions[s] == nil {
		h.sessions[s] = make(map[string]struct{})
		observability.RealtimeConnections.Inc()
	}
	h.sessions[s][room] = struct{}{}
}

func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, room)
}

func (h *Hub) leaveLocked(s *Session, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.sessions[s]; ok {
		delete(rooms, room)
	}
}

// Remove drops the session from every room it joined.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.sessions[s]
	if !ok {
		return
	}
	for room := range rooms {
		h.leaveLocked(s, room)
	}
	delete(h.sessions, s)
	observability.RealtimeConnections.Dec()
}

func (h *Hub) InRoom(s *Session, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[s][room]
	return ok
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver hands an event to every local member of its room. Delivery never
// blocks; slow sessions are dropped by TrySend.
func (h *Hub) Deliver(ev Event) {
	frames := h.frames(ev)
	if len(frames) == 0 {
		return
	}

	h.mu.RLock()
	members := make([]*Session, 0, len(h.rooms[ev.Room]))
	for s := range h.rooms[ev.Room] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		for _, f := range frames {
			if !s.TrySend(f) {
				break
			}
		}
	}
	if len(members) > 0 {
		observability.RealtimeEventsTotal.WithLabelValues(ev.Type).Add(float64(len(members)))
	}
}

func (h *Hub) frames(ev Event) [][]byte {
	if h.opts.SignalOnly {
		ev.Data = nil
	}

	out := make([][]byte, 0, 2)
	b, err := json.Marshal(ev)
	if err != nil {
		observability.Log.Error("hub: failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return nil
	}
	out = append(out, b)

	if legacy, ok := domain.LegacyEventNames[ev.Type]; ok && h.opts.LegacyEvents {
		ev.Type = legacy
		if b, err := json.Marshal(ev); err == nil {
			out = append(out, b)
		}
	}
	return out
}

func (h *Hub) CloseAll() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
	}
}
