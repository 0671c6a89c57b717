// Package scheduler drives turn rotation and per-turn time budgets.
//
// Timers are never cancelled. Every arm bumps a per-session epoch and
// the fired callback is ignored unless its epoch is still current, so a
// timeout that lost the race against an action, a pause, or a resume
// simply goes inert. Advancing by action and advancing by timeout both
// funnel through Advance, which keeps the round/index invariants intact
// no matter which trigger fired.
package scheduler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/clock"
	"github.com/voicearcade/server/internal/events"
	"github.com/voicearcade/server/internal/game"
)

// TimeoutFunc is invoked on the timer goroutine when a turn's budget
// elapses. The receiver must re-validate the session before acting.
type TimeoutFunc func(sessionID string, epoch uint64)

type Scheduler struct {
	clock     clock.Clock
	bus       *events.Bus
	log       *zap.Logger
	onTimeout TimeoutFunc

	mu     sync.Mutex
	epochs map[string]uint64
}

func New(clk clock.Clock, bus *events.Bus, log *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clk,
		bus:    bus,
		log:    log,
		epochs: make(map[string]uint64),
	}
}

// OnTimeout installs the engine's timeout entry point. Must be set
// before the first turn starts.
func (s *Scheduler) OnTimeout(fn TimeoutFunc) { s.onTimeout = fn }

// StartTurn announces the current turn and arms a fresh full-length
// timeout for it. Caller holds the engine lock.
func (s *Scheduler) StartTurn(sess *game.Session) {
	playerID := sess.CurrentPlayerID()
	s.bus.Publish(game.Event{
		Type:      game.EvtTurnStarted,
		SessionID: sess.ID,
		Payload: map[string]any{
			"player_id":       playerID,
			"round":           sess.Round,
			"turn_index":      sess.TurnIndex,
			"timeout_seconds": int(sess.Settings.TurnTimeout.Seconds()),
		},
		Timestamp: s.clock.Now(),
		Broadcast: true,
	})
	s.Rearm(sess)
}

// Rearm schedules a new full-length timeout for the current turn
// without re-announcing it (used on resume). Caller holds the engine
// lock.
func (s *Scheduler) Rearm(sess *game.Session) {
	if sess.Settings.TurnTimeout <= 0 {
		return
	}
	epoch := s.bumpEpoch(sess.ID)
	id := sess.ID
	s.clock.AfterFunc(sess.Settings.TurnTimeout, func() {
		s.onTimeout(id, epoch)
	})
	s.log.Debug("turn timeout armed",
		zap.String("session_id", id),
		zap.Uint64("epoch", epoch),
		zap.Duration("timeout", sess.Settings.TurnTimeout))
}

// Advance rotates to the next turn, wrapping into a new round when the
// order is exhausted. Reports true when the round budget is spent and
// the session should complete instead of starting another turn. Caller
// holds the engine lock.
func (s *Scheduler) Advance(sess *game.Session) (completed bool) {
	sess.TurnIndex = (sess.TurnIndex + 1) % len(sess.TurnOrder)
	if sess.TurnIndex == 0 {
		sess.Round++
		if sess.MaxRounds > 0 && sess.Round >= sess.MaxRounds {
			s.Forget(sess.ID)
			return true
		}
		s.bus.Publish(game.Event{
			Type:      game.EvtRoundStarted,
			SessionID: sess.ID,
			Payload:   map[string]any{"round": sess.Round},
			Timestamp: s.clock.Now(),
			Broadcast: true,
		})
	}
	s.StartTurn(sess)
	return false
}

// Current reports whether epoch is still the live arm for sessionID.
func (s *Scheduler) Current(sessionID string, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[sessionID] == epoch
}

// Forget invalidates any armed timer for sessionID. Called when the
// session leaves IN_PROGRESS for good.
func (s *Scheduler) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.epochs, sessionID)
}

func (s *Scheduler) bumpEpoch(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[sessionID]++
	return s.epochs[sessionID]
}
