// Package voice turns free-form transcripts into validated game actions.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/ai"
	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/strategy"
)

type Router struct {
	classifier ai.IntentClassifier
	log        *zap.Logger
}

func NewRouter(classifier ai.IntentClassifier, log *zap.Logger) *Router {
	return &Router{classifier: classifier, log: log}
}

// Resolve maps a transcript to a canonical action: first match wins in
// the strategy's ordered keyword table, otherwise the external intent
// classifier decides. Classification may suspend on network I/O, so
// callers must re-validate session state after Resolve returns.
func (r *Router) Resolve(ctx context.Context, strat strategy.Strategy, hints map[string]string, playerID, text string, confidence float64) (game.GameAction, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return game.GameAction{}, fmt.Errorf("%w: empty transcript", game.ErrAmbiguousInput)
	}

	for _, rule := range strat.Keywords() {
		if !strings.Contains(lower, rule.Phrase) {
			continue
		}
		actionType, payload := rule.Resolve(lower)
		return game.GameAction{
			PlayerID:    playerID,
			Type:        actionType,
			Payload:     payload,
			SubmittedAt: time.Now(),
			Confidence:  confidence,
		}, nil
	}

	intent, err := r.classifier.Classify(ctx, text, hints)
	if err != nil {
		r.log.Warn("intent classification failed",
			zap.String("player_id", playerID), zap.Error(err))
		return game.GameAction{}, err
	}
	if intent.Type == "" || intent.Type == "unknown" {
		return game.GameAction{}, fmt.Errorf("%w: %q", game.ErrAmbiguousInput, text)
	}

	payload := intent.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	if _, ok := payload["text"]; !ok {
		payload["text"] = lower
	}

	return game.GameAction{
		PlayerID:    playerID,
		Type:        intent.Type,
		Payload:     payload,
		SubmittedAt: time.Now(),
		Confidence:  confidence,
	}, nil
}

// Validate rejects actions the session cannot accept right now. Typed
// errors only; the orchestrator turns them into spoken rejections.
func (r *Router) Validate(sess *game.Session, strat strategy.Strategy, action game.GameAction) error {
	if sess.State != game.StateInProgress {
		return fmt.Errorf("%w: session is %s", game.ErrInvalidState, sess.State)
	}
	if _, ok := sess.Players[action.PlayerID]; !ok {
		return fmt.Errorf("%w: player %s not in session", game.ErrNotAuthorized, action.PlayerID)
	}
	if strat.TurnBased() && sess.CurrentPlayerID() != action.PlayerID {
		return fmt.Errorf("%w: it is %s's turn", game.ErrNotAuthorized, sess.CurrentPlayerID())
	}
	return nil
}

// Hints summarizes the session for the classifier. Strategy metadata is
// forwarded as an opaque blob; the engine does not look inside it.
func Hints(sess *game.Session) map[string]string {
	hints := map[string]string{
		"game_type":      string(sess.GameType),
		"state":          string(sess.State),
		"current_player": sess.CurrentPlayerID(),
		"round":          fmt.Sprintf("%d", sess.Round),
	}
	if sess.Metadata != nil {
		if blob, err := json.Marshal(sess.Metadata); err == nil {
			hints["game_context"] = string(blob)
		}
	}
	return hints
}
