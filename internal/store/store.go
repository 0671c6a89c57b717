// Package store holds the live session map. It is the only shared
// mutable resource in the engine; every mutation flows through the
// orchestrator so the lifecycle invariants hold by construction.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/snapshot"

	"sync"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
	// finalized stats survive removal from the live map
	stats map[string]*game.Stats

	cache       snapshot.Cache
	snapshotTTL time.Duration
	log         *zap.Logger

	// wmu guards writes; each session's cache traffic goes through one
	// flusher goroutine so snapshots land in mutation order.
	wmu    sync.Mutex
	writes map[string]*pendingWrite
}

// pendingWrite coalesces snapshot writes for one session: only the
// latest unwritten snapshot is kept, and a deletion supersedes it.
type pendingWrite struct {
	next    *game.Snapshot
	deleted bool
	active  bool
}

func New(cache snapshot.Cache, snapshotTTL time.Duration, log *zap.Logger) *Store {
	return &Store{
		sessions:    make(map[string]*game.Session),
		stats:       make(map[string]*game.Stats),
		cache:       cache,
		snapshotTTL: snapshotTTL,
		log:         log,
		writes:      make(map[string]*pendingWrite),
	}
}

// Create registers a new waiting session with the host as its first
// player and turn-order entry.
func (s *Store) Create(hostID, hostName string, gameType game.GameType, settings game.Settings) *game.Session {
	now := time.Now()
	sess := &game.Session{
		ID:       uuid.NewString(),
		GameType: gameType,
		State:    game.StateWaiting,
		Players: map[string]*game.Player{
			hostID: {
				ID:           hostID,
				Name:         hostName,
				Role:         game.RoleHost,
				JoinedAt:     now,
				LastActiveAt: now,
			},
		},
		Settings:  settings,
		MaxRounds: settings.MaxRounds,
		TurnOrder: []string{hostID},
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.Persist(sess)
	return sess
}

// Join appends a player. Typed failures, never partial adds: the player
// map and turn order are updated together or not at all.
func (s *Store) Join(sessionID, playerID, name string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.State != game.StateWaiting {
		return game.ErrInvalidState
	}
	if _, exists := sess.Players[playerID]; exists {
		return game.ErrDuplicatePlayer
	}
	if sess.Settings.MaxPlayers > 0 && len(sess.Players) >= sess.Settings.MaxPlayers {
		return game.ErrSessionFull
	}

	now := time.Now()
	sess.Players[playerID] = &game.Player{
		ID:           playerID,
		Name:         name,
		Role:         game.RolePlayer,
		JoinedAt:     now,
		LastActiveAt: now,
	}
	sess.TurnOrder = append(sess.TurnOrder, playerID)

	s.Persist(sess)
	return nil
}

func (s *Store) Get(sessionID string) (*game.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, game.ErrNotFound
	}
	return sess, nil
}

// Remove drops the session from the live map. Finalized stats recorded
// via RetainStats are unaffected. The cache entry is deleted through
// the session's flusher, behind any snapshot still in flight, so the
// caller never blocks on the cache.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.wmu.Lock()
	w := s.writes[sessionID]
	if w == nil {
		w = &pendingWrite{}
		s.writes[sessionID] = w
	}
	w.next = nil
	w.deleted = true
	if !w.active {
		w.active = true
		go s.flush(sessionID, w)
	}
	s.wmu.Unlock()
}

// RetainStats records a session's final summary so it outlives Remove.
func (s *Store) RetainStats(sessionID string, stats *game.Stats) {
	s.mu.Lock()
	s.stats[sessionID] = stats
	s.mu.Unlock()
}

func (s *Store) Stats(sessionID string) (*game.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[sessionID]
	return st, ok
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Persist queues a best-effort snapshot of sess for the external cache.
// Writes for one session are serialized through a single flusher and
// coalesced to the newest snapshot, so the cache can lag but never
// regress to an older state. Failures are logged, never surfaced: the
// cache is a recovery path, not a correctness guarantee.
func (s *Store) Persist(sess *game.Session) {
	s.mu.RLock()
	_, live := s.sessions[sess.ID]
	s.mu.RUnlock()
	if !live {
		return
	}
	snap := snapshotOf(sess)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	w := s.writes[sess.ID]
	if w == nil {
		w = &pendingWrite{}
		s.writes[sess.ID] = w
	}
	if w.deleted {
		return
	}
	w.next = &snap
	if !w.active {
		w.active = true
		go s.flush(sess.ID, w)
	}
}

// flush drains one session's queued cache traffic. Exits once nothing
// is pending; the next Persist or Remove starts a fresh flusher.
func (s *Store) flush(sessionID string, w *pendingWrite) {
	for {
		s.wmu.Lock()
		snap := w.next
		w.next = nil
		del := w.deleted
		if del {
			delete(s.writes, sessionID)
		} else if snap == nil {
			w.active = false
		}
		s.wmu.Unlock()

		switch {
		case del:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.cache.Delete(ctx, sessionID); err != nil {
				s.log.Warn("snapshot delete failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			cancel()
			return
		case snap == nil:
			return
		}

		blob, err := json.Marshal(snap)
		if err != nil {
			s.log.Warn("snapshot marshal failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.cache.Put(ctx, sessionID, blob, s.snapshotTTL); err != nil {
			s.log.Warn("snapshot write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		cancel()
	}
}

// snapshotOf copies the fields we persist while the caller still holds
// the engine lock, so the background write never reads a mutating session.
func snapshotOf(sess *game.Session) game.Snapshot {
	players := make([]game.Player, 0, len(sess.Players))
	for _, id := range sess.TurnOrder {
		if p, ok := sess.Players[id]; ok {
			players = append(players, *p)
		}
	}

	var meta json.RawMessage
	if sess.Metadata != nil {
		if b, err := json.Marshal(sess.Metadata); err == nil {
			meta = b
		}
	}

	return game.Snapshot{
		ID:        sess.ID,
		GameType:  sess.GameType,
		State:     sess.State,
		Players:   players,
		Settings:  sess.Settings,
		Metadata:  meta,
		Round:     sess.Round,
		MaxRounds: sess.MaxRounds,
		TurnOrder: append([]string(nil), sess.TurnOrder...),
		TurnIndex: sess.TurnIndex,
		CreatedAt: sess.CreatedAt,
	}
}
