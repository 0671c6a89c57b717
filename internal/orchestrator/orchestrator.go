// Package orchestrator is the engine's composition root: it owns the
// session store, turn scheduler and event bus, and exposes the public
// lifecycle API.
//
// One mutex serializes all session mutation. Operations that suspend
// (content generation, intent classification) run outside it and
// re-validate the session's state after resuming; that re-validation,
// not the captured values, is what the timeout and start paths trust.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/clock"
	"github.com/voicearcade/server/internal/events"
	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/scheduler"
	"github.com/voicearcade/server/internal/store"
	"github.com/voicearcade/server/internal/strategy"
	"github.com/voicearcade/server/internal/voice"
)

// Defaults fill in session settings the caller left zero.
type Defaults struct {
	MaxPlayers  int
	MinPlayers  int
	MaxRounds   int
	TurnTimeout time.Duration
}

type Config struct {
	Defaults Defaults
	// GracePeriod keeps an ended session readable before it leaves the
	// live store.
	GracePeriod time.Duration
}

type Orchestrator struct {
	mu sync.Mutex

	cfg      Config
	store    *store.Store
	sched    *scheduler.Scheduler
	bus      *events.Bus
	router   *voice.Router
	registry *strategy.Registry
	clock    clock.Clock
	log      *zap.Logger
}

func New(cfg Config, st *store.Store, sched *scheduler.Scheduler, bus *events.Bus, router *voice.Router, registry *strategy.Registry, clk clock.Clock, log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    st,
		sched:    sched,
		bus:      bus,
		router:   router,
		registry: registry,
		clock:    clk,
		log:      log,
	}
	sched.OnTimeout(o.handleTurnTimeout)
	return o
}

// Bus exposes the event bus for sink subscriptions.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// CreateSession registers a new waiting session with hostID as host.
func (o *Orchestrator) CreateSession(hostID, hostName string, gameType game.GameType, settings game.Settings) (*game.View, error) {
	if _, err := o.registry.Get(gameType); err != nil {
		return nil, err
	}
	o.applyDefaults(&settings)

	o.mu.Lock()
	defer o.mu.Unlock()

	sess := o.store.Create(hostID, hostName, gameType, settings)
	o.publish(sess, game.EvtSessionCreated, map[string]any{
		"host_id":   hostID,
		"game_type": string(gameType),
	})
	o.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("game_type", string(gameType)),
		zap.String("host_id", hostID))
	return viewOf(sess), nil
}

// JoinSession adds a player to a waiting session.
func (o *Orchestrator) JoinSession(sessionID, playerID, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Join(sessionID, playerID, name); err != nil {
		return err
	}
	sess, _ := o.store.Get(sessionID)
	o.publish(sess, game.EvtPlayerJoined, map[string]any{
		"player_id":    playerID,
		"name":         name,
		"player_count": len(sess.Players),
	})
	return nil
}

// StartSession runs WAITING -> STARTING -> IN_PROGRESS. Content
// generation happens between the two transitions, outside the lock.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID string) (err error) {
	defer o.recoverInternal(&err, "start", sessionID)

	o.mu.Lock()
	sess, getErr := o.store.Get(sessionID)
	if getErr != nil {
		o.mu.Unlock()
		return getErr
	}
	if sess.State != game.StateWaiting {
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", game.ErrInvalidState, sess.State)
	}
	if len(sess.Players) < sess.Settings.MinPlayers {
		o.mu.Unlock()
		return fmt.Errorf("%w: need at least %d players", game.ErrInvalidState, sess.Settings.MinPlayers)
	}
	strat, stratErr := o.registry.Get(sess.GameType)
	if stratErr != nil {
		o.mu.Unlock()
		return stratErr
	}
	sess.State = game.StateStarting
	o.mu.Unlock()

	// Suspension point: may call the external content service.
	meta, genErr := strat.GenerateContent(ctx, sess)

	o.mu.Lock()
	defer o.mu.Unlock()

	// Re-validate: the session may have been ended while we waited.
	sess, getErr = o.store.Get(sessionID)
	if getErr != nil {
		return getErr
	}
	if sess.State != game.StateStarting {
		return fmt.Errorf("%w: session moved to %s during start", game.ErrInvalidState, sess.State)
	}
	if genErr != nil {
		sess.State = game.StateWaiting
		o.log.Warn("content generation failed",
			zap.String("session_id", sessionID), zap.Error(genErr))
		return genErr
	}

	sess.Metadata = meta
	sess.State = game.StateInProgress
	sess.StartedAt = o.clock.Now()
	o.publish(sess, game.EvtGameStarted, map[string]any{
		"player_count": len(sess.Players),
		"max_rounds":   sess.MaxRounds,
	})
	o.sched.StartTurn(sess)
	o.store.Persist(sess)
	o.log.Info("session started", zap.String("session_id", sessionID))
	return nil
}

// ProcessVoiceCommand routes a transcript into a session-scoped action.
// The returned ActionResult always carries something to say, including
// on typed rejections.
func (o *Orchestrator) ProcessVoiceCommand(ctx context.Context, sessionID, playerID, text string, confidence float64) (res game.ActionResult, err error) {
	// Registered before recoverInternal so it runs after: a recovered
	// panic must still yield a spoken line.
	defer func() {
		if err != nil && res.Spoken == "" {
			res.Spoken = game.SpokenFallback(err)
			res.RejectReason = err.Error()
		}
	}()
	defer o.recoverInternal(&err, "voice", sessionID)

	o.mu.Lock()
	sess, getErr := o.store.Get(sessionID)
	if getErr != nil {
		o.mu.Unlock()
		return res, getErr
	}
	strat, stratErr := o.registry.Get(sess.GameType)
	if stratErr != nil {
		o.mu.Unlock()
		return res, stratErr
	}
	if sess.State != game.StateInProgress {
		o.mu.Unlock()
		return res, fmt.Errorf("%w: session is %s", game.ErrInvalidState, sess.State)
	}
	hints := voice.Hints(sess)
	o.mu.Unlock()

	// Suspension point: classification may hit the network.
	action, resolveErr := o.router.Resolve(ctx, strat, hints, playerID, text, confidence)
	if resolveErr != nil {
		return res, resolveErr
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Re-validate: the turn, or the whole session, may have moved on.
	sess, getErr = o.store.Get(sessionID)
	if getErr != nil {
		return res, getErr
	}
	if validateErr := o.router.Validate(sess, strat, action); validateErr != nil {
		return res, validateErr
	}

	res, procErr := strat.ProcessAction(sess, action)
	if procErr != nil {
		return res, procErr
	}

	if p := sess.Players[playerID]; p != nil {
		p.LastActiveAt = o.clock.Now()
	}
	o.publish(sess, game.EvtActionApplied, map[string]any{
		"player_id":   playerID,
		"action_type": res.ActionType,
		"score_delta": res.ScoreDelta,
		"spoken":      res.Spoken,
	})

	switch {
	case res.EndsSession:
		o.finishLocked(sess, "completed")
	case res.EndsTurn:
		if o.sched.Advance(sess) {
			o.finishLocked(sess, "completed")
		}
	}
	o.store.Persist(sess)
	return res, nil
}

// PauseSession freezes an in-progress session. The armed turn timer is
// left alone; its epoch goes stale the moment the session resumes.
func (o *Orchestrator) PauseSession(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.State != game.StateInProgress {
		return fmt.Errorf("%w: cannot pause from %s", game.ErrInvalidState, sess.State)
	}
	sess.State = game.StatePaused
	o.publish(sess, game.EvtSessionPaused, nil)
	o.store.Persist(sess)
	return nil
}

// ResumeSession returns a paused session to play with a fresh
// full-length timeout for the unchanged current turn.
func (o *Orchestrator) ResumeSession(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.State != game.StatePaused {
		return fmt.Errorf("%w: cannot resume from %s", game.ErrInvalidState, sess.State)
	}
	sess.State = game.StateInProgress
	o.publish(sess, game.EvtSessionResumed, map[string]any{
		"player_id": sess.CurrentPlayerID(),
		"round":     sess.Round,
	})
	o.sched.Rearm(sess)
	o.store.Persist(sess)
	return nil
}

// EndSession finalizes a session from any non-terminal state. Ending an
// already-ended session returns the previously computed stats without
// re-broadcasting game_ended.
func (o *Orchestrator) EndSession(sessionID, reason string) (*game.Stats, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Get(sessionID)
	if err != nil {
		if stats, ok := o.store.Stats(sessionID); ok {
			return stats, nil
		}
		return nil, err
	}
	if sess.State.Terminal() {
		if stats, ok := o.store.Stats(sessionID); ok {
			return stats, nil
		}
		// terminal without retained stats should not happen
		return nil, fmt.Errorf("%w: session already ended", game.ErrInvalidState)
	}
	stats := o.finishLocked(sess, reason)
	o.store.Persist(sess)
	return stats, nil
}

// GetSessionState returns a read-only projection of a live session.
func (o *Orchestrator) GetSessionState(sessionID string) (*game.View, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// SessionStats returns the retained summary of an ended session.
func (o *Orchestrator) SessionStats(sessionID string) (*game.Stats, error) {
	if stats, ok := o.store.Stats(sessionID); ok {
		return stats, nil
	}
	return nil, game.ErrNotFound
}

// handleTurnTimeout fires on the timer goroutine when a turn's budget
// elapses. It re-fetches the session and no-ops unless the arm that
// scheduled it is still current and the session is still in progress,
// which closes the race with an action that already advanced the turn.
func (o *Orchestrator) handleTurnTimeout(sessionID string, epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.store.Get(sessionID)
	if err != nil {
		return
	}
	if sess.State != game.StateInProgress {
		return
	}
	if !o.sched.Current(sessionID, epoch) {
		return
	}

	skipped := sess.CurrentPlayerID()
	if p := sess.Players[skipped]; p != nil {
		p.Streak = 0
	}
	o.publish(sess, game.EvtTurnSkipped, map[string]any{
		"player_id": skipped,
		"round":     sess.Round,
	})
	o.log.Debug("turn timed out",
		zap.String("session_id", sessionID), zap.String("player_id", skipped))

	if o.sched.Advance(sess) {
		o.finishLocked(sess, "completed")
	}
	o.store.Persist(sess)
}

// finishLocked computes stats, transitions to a terminal state, emits
// game_ended once and schedules the grace-period removal. Caller holds
// the engine lock.
func (o *Orchestrator) finishLocked(sess *game.Session, reason string) *game.Stats {
	if reason == "completed" {
		sess.State = game.StateCompleted
	} else {
		sess.State = game.StateAbandoned
	}
	sess.EndedAt = o.clock.Now()
	o.sched.Forget(sess.ID)

	stats := computeStats(sess, reason)
	o.store.RetainStats(sess.ID, stats)

	o.publish(sess, game.EvtGameEnded, map[string]any{
		"reason":    reason,
		"winner_id": stats.WinnerID,
		"stats":     stats,
	})

	id := sess.ID
	o.clock.AfterFunc(o.cfg.GracePeriod, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if s, err := o.store.Get(id); err == nil && s.State.Terminal() {
			o.store.Remove(id)
		}
	})

	o.log.Info("session ended",
		zap.String("session_id", sess.ID),
		zap.String("reason", reason),
		zap.String("winner_id", stats.WinnerID))
	return stats
}

// computeStats builds the final summary. Winner is the highest score;
// ties go to the earliest joiner, which is turn-order position.
func computeStats(sess *game.Session, reason string) *game.Stats {
	stats := &game.Stats{
		SessionID: sess.ID,
		GameType:  sess.GameType,
		Reason:    reason,
		Rounds:    sess.Round,
		EndedAt:   sess.EndedAt,
	}
	if !sess.StartedAt.IsZero() {
		stats.Duration = sess.EndedAt.Sub(sess.StartedAt)
	}

	best := -1
	for _, id := range sess.TurnOrder {
		p, ok := sess.Players[id]
		if !ok {
			continue
		}
		ps := game.PlayerStats{
			PlayerID:   p.ID,
			Name:       p.Name,
			Score:      p.Score,
			BestStreak: p.BestStreak,
			Correct:    p.Correct,
			Answered:   p.Answered,
		}
		if p.Answered > 0 {
			ps.Accuracy = float64(p.Correct) / float64(p.Answered)
		}
		stats.Players = append(stats.Players, ps)
		if p.Score > best {
			best = p.Score
			stats.WinnerID = p.ID
		}
	}
	return stats
}

func (o *Orchestrator) applyDefaults(s *game.Settings) {
	d := o.cfg.Defaults
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = d.MaxPlayers
	}
	if s.MinPlayers <= 0 {
		s.MinPlayers = d.MinPlayers
	}
	if s.MaxRounds <= 0 {
		s.MaxRounds = d.MaxRounds
	}
	if s.TurnTimeout <= 0 {
		s.TurnTimeout = d.TurnTimeout
	}
}

func (o *Orchestrator) publish(sess *game.Session, t game.EventType, payload map[string]any) {
	o.bus.Publish(game.Event{
		Type:      t,
		SessionID: sess.ID,
		Payload:   payload,
		Timestamp: o.clock.Now(),
		Broadcast: true,
	})
}

// recoverInternal converts a panic escaping an entry point into a typed
// upstream failure instead of crossing the API boundary.
func (o *Orchestrator) recoverInternal(err *error, op, sessionID string) {
	if r := recover(); r != nil {
		o.log.Error("internal fault",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.Any("panic", r),
			zap.Stack("stack"))
		*err = fmt.Errorf("%w: internal fault in %s", game.ErrUpstreamFailure, op)
	}
}

func viewOf(sess *game.Session) *game.View {
	players := make([]game.Player, 0, len(sess.Players))
	for _, id := range sess.TurnOrder {
		if p, ok := sess.Players[id]; ok {
			players = append(players, *p)
		}
	}
	return &game.View{
		ID:            sess.ID,
		GameType:      sess.GameType,
		State:         sess.State,
		Players:       players,
		Round:         sess.Round,
		MaxRounds:     sess.MaxRounds,
		TurnOrder:     append([]string(nil), sess.TurnOrder...),
		TurnIndex:     sess.TurnIndex,
		CurrentPlayer: sess.CurrentPlayerID(),
		CreatedAt:     sess.CreatedAt,
	}
}
