// Package ws streams session events to connected clients. It is one
// possible sink behind the event bus; the engine does not wait for or
// acknowledge delivery.
package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/events"
	"github.com/voicearcade/server/internal/game"
)

// Hub fans bus events out to per-session subscriber channels.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[string]chan game.Event
	log     *zap.Logger
}

func NewHub(bus *events.Bus, log *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]map[string]chan game.Event),
		log:     log,
	}
	bus.Subscribe(events.Wildcard, h.broadcast)
	return h
}

// Join registers a client for one session's events and returns its
// outbox. The channel is closed when the client is dropped or leaves.
func (h *Hub) Join(sessionID, clientID string) <-chan game.Event {
	out := make(chan game.Event, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[string]chan game.Event)
	}
	if old, ok := h.clients[sessionID][clientID]; ok {
		close(old)
	}
	h.clients[sessionID][clientID] = out
	return out
}

func (h *Hub) Leave(sessionID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if outs, ok := h.clients[sessionID]; ok {
		if out, ok := outs[clientID]; ok {
			close(out)
			delete(outs, clientID)
		}
		if len(outs) == 0 {
			delete(h.clients, sessionID)
		}
	}
}

func (h *Hub) broadcast(ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for clientID, out := range h.clients[ev.SessionID] {
		select {
		case out <- ev:
		default:
			// Slow or stuck client: drop it rather than block delivery.
			close(out)
			delete(h.clients[ev.SessionID], clientID)
			h.log.Warn("dropped slow event subscriber",
				zap.String("session_id", ev.SessionID),
				zap.String("client_id", clientID))
		}
	}
}
