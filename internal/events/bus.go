// Package events fans session and game events out to subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/game"
)

// Wildcard subscribes a handler to every broadcast event type.
const Wildcard game.EventType = "*"

type Handler func(game.Event)

type subscription struct {
	id      int
	evtType game.EventType
	fn      Handler
}

// Bus delivers each published broadcast event to the handlers registered
// for its type plus any wildcard handlers. Handlers run synchronously on
// the publisher's goroutine; a panicking handler is logged and skipped
// without affecting later handlers or the publisher.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[game.EventType][]subscription
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[game.EventType][]subscription),
		log:      log,
	}
}

// Subscribe registers fn for evtType and returns a token for Unsubscribe.
// Safe to call from inside a handler.
func (b *Bus) Subscribe(evtType game.EventType, fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	// Copy-on-write keeps slices handed to an in-flight Publish stable.
	existing := b.handlers[evtType]
	next := make([]subscription, len(existing), len(existing)+1)
	copy(next, existing)
	b.handlers[evtType] = append(next, subscription{id: id, evtType: evtType, fn: fn})
	return id
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for evtType, subs := range b.handlers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[evtType] = next
			return
		}
	}
}

// Publish delivers ev to its subscribers. Events with Broadcast=false
// are internal bookkeeping and are dropped here.
func (b *Bus) Publish(ev game.Event) {
	if !ev.Broadcast {
		return
	}

	b.mu.Lock()
	subs := b.handlers[ev.Type]
	if wild := b.handlers[Wildcard]; len(wild) > 0 {
		merged := make([]subscription, 0, len(subs)+len(wild))
		merged = append(merged, subs...)
		merged = append(merged, wild...)
		subs = merged
	}
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev game.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event_type", string(ev.Type)),
				zap.String("session_id", ev.SessionID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	s.fn(ev)
}
