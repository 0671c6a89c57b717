// Package strategy defines the contract between the session engine and
// the pluggable per-game rule sets.
package strategy

import (
	"context"
	"sync"

	"github.com/voicearcade/server/internal/game"
)

// KeywordRule maps a spoken phrase to a canonical action. Rules are
// checked in order; the first phrase found as a substring of the
// lower-cased transcript wins and Resolve builds the action from the
// full transcript.
type KeywordRule struct {
	Phrase  string
	Resolve func(text string) (actionType string, payload map[string]string)
}

// Strategy is one game's rule set. It owns the session's Metadata
// exclusively; the engine never looks inside it.
type Strategy interface {
	Type() game.GameType

	// TurnBased strategies only accept actions from the current turn's
	// player; free-play strategies (bingo) accept anyone's.
	TurnBased() bool

	// GenerateContent builds the metadata payload for a session about to
	// start. It may call an external generator and therefore may be
	// slow; the orchestrator runs it outside the engine lock and assigns
	// the result only after re-validating the session, so implementations
	// must return the payload rather than mutating sess.
	GenerateContent(ctx context.Context, sess *game.Session) (game.Metadata, error)

	// Keywords is the ordered phrase table the voice router consults
	// before falling back to the intent classifier.
	Keywords() []KeywordRule

	// ProcessAction applies one validated action, mutating player scores
	// and metadata. The result reports whether the turn or session ends.
	ProcessAction(sess *game.Session, action game.GameAction) (game.ActionResult, error)
}

// Registry resolves game types to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[game.GameType]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[game.GameType]Strategy)}
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Type()] = s
}

func (r *Registry) Get(t game.GameType) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[t]
	if !ok {
		return nil, game.ErrUnknownGameType
	}
	return s, nil
}

// Types lists the registered game types.
func (r *Registry) Types() []game.GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]game.GameType, 0, len(r.strategies))
	for t := range r.strategies {
		out = append(out, t)
	}
	return out
}
