// Package twentyq is the deduction rule set: the engine holds a secret
// subject and players spend a shared budget of yes/no questions to
// find it.
package twentyq

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/ai"
	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/strategy"
)

const defaultQuestionLimit = 20

// State is the twenty-questions payload stored in session metadata.
type State struct {
	Subject  string   `json:"subject"`
	Category string   `json:"category"`
	Facts    []string `json:"facts"`
	Asked    int      `json:"asked"`
	Limit    int      `json:"limit"`
	Solved   bool     `json:"solved"`
}

func (*State) GameType() game.GameType { return game.GameTwentyQuestions }

type Strategy struct {
	gen ai.ContentGenerator
	log *zap.Logger
}

func New(gen ai.ContentGenerator, log *zap.Logger) *Strategy {
	return &Strategy{gen: gen, log: log}
}

func (*Strategy) Type() game.GameType { return game.GameTwentyQuestions }
func (*Strategy) TurnBased() bool     { return true }

func (s *Strategy) GenerateContent(ctx context.Context, sess *game.Session) (game.Metadata, error) {
	category := sess.Settings.Extra["category"]
	if category == "" {
		category = "everyday objects, animals, or famous people"
	}

	prompt := fmt.Sprintf(
		"Pick one secret subject from: %s. Reply in this exact format:\nSubject: <the subject>\nCategory: <one word category>\nFact: <a true yes-fact about it>\nFact: <another>\nFact: <another>", category)
	text, err := s.gen.Generate(ctx, prompt, sess.Settings.Difficulty, 1)
	if err != nil {
		return nil, err
	}

	state := parseSubject(text)
	if state.Subject == "" {
		return nil, fmt.Errorf("%w: generated text had no subject", game.ErrUpstreamFailure)
	}
	state.Limit = defaultQuestionLimit
	s.log.Debug("twenty questions subject chosen", zap.String("session_id", sess.ID))

	return state, nil
}

func parseSubject(text string) *State {
	state := &State{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Subject:"):
			state.Subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
		case strings.HasPrefix(line, "Category:"):
			state.Category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		case strings.HasPrefix(line, "Fact:"):
			if fact := strings.TrimSpace(strings.TrimPrefix(line, "Fact:")); fact != "" {
				state.Facts = append(state.Facts, fact)
			}
		}
	}
	return state
}

func (s *Strategy) Keywords() []strategy.KeywordRule {
	capture := func(actionType string) func(string) (string, map[string]string) {
		return func(text string) (string, map[string]string) {
			return actionType, map[string]string{"text": text}
		}
	}
	return []strategy.KeywordRule{
		{Phrase: "my guess is", Resolve: capture("guess")},
		{Phrase: "i guess", Resolve: capture("guess")},
		{Phrase: "final answer", Resolve: capture("guess")},
		{Phrase: "is it", Resolve: capture("question")},
		{Phrase: "does it", Resolve: capture("question")},
		{Phrase: "can it", Resolve: capture("question")},
		{Phrase: "was it", Resolve: capture("question")},
		{Phrase: "how many questions", Resolve: capture("remaining")},
	}
}

func (s *Strategy) ProcessAction(sess *game.Session, action game.GameAction) (game.ActionResult, error) {
	state, ok := sess.Metadata.(*State)
	if !ok || state.Subject == "" {
		return game.ActionResult{}, fmt.Errorf("%w: subject not generated", game.ErrInvalidState)
	}
	player := sess.Players[action.PlayerID]
	text := action.Payload["text"]

	switch action.Type {
	case "question":
		state.Asked++
		player.Answered++
		reply := "No."
		if answersYes(state, text) {
			reply = "Yes."
		}
		if state.Asked >= state.Limit {
			return game.ActionResult{
				OK:          true,
				ActionType:  "question",
				Spoken:      fmt.Sprintf("%s That was the last question. It was %s. Better luck next time!", reply, state.Subject),
				EndsTurn:    true,
				EndsSession: true,
			}, nil
		}
		return game.ActionResult{
			OK:         true,
			ActionType: "question",
			Spoken:     fmt.Sprintf("%s %d questions left.", reply, state.Limit-state.Asked),
			EndsTurn:   true,
		}, nil

	case "guess":
		player.Answered++
		if containsSubject(text, state.Subject) {
			state.Solved = true
			player.Correct++
			player.Streak++
			if player.Streak > player.BestStreak {
				player.BestStreak = player.Streak
			}
			delta := 50 + 10*(state.Limit-state.Asked)
			player.Score += delta
			return game.ActionResult{
				OK:          true,
				ActionType:  "guess",
				Spoken:      fmt.Sprintf("Yes! It was %s. %d points!", state.Subject, delta),
				ScoreDelta:  delta,
				EndsTurn:    true,
				EndsSession: true,
			}, nil
		}
		state.Asked++
		player.Streak = 0
		if state.Asked >= state.Limit {
			return game.ActionResult{
				OK:          true,
				ActionType:  "guess",
				Spoken:      fmt.Sprintf("No, and that was the last question. It was %s.", state.Subject),
				EndsTurn:    true,
				EndsSession: true,
			}, nil
		}
		return game.ActionResult{
			OK:         true,
			ActionType: "guess",
			Spoken:     fmt.Sprintf("No, that's not it. A wrong guess costs a question; %d left.", state.Limit-state.Asked),
			EndsTurn:   true,
		}, nil

	case "remaining":
		return game.ActionResult{
			OK:         true,
			ActionType: "remaining",
			Spoken:     fmt.Sprintf("%d questions left.", state.Limit-state.Asked),
		}, nil

	default:
		return game.ActionResult{}, fmt.Errorf("%w: twenty questions cannot handle %q", game.ErrAmbiguousInput, action.Type)
	}
}

// answersYes is a keyword-overlap heuristic against the generated
// yes-facts and the subject itself. Good enough for party play; the
// facts came from the same model that chose the subject.
func answersYes(state *State, question string) bool {
	q := tokens(question)
	if len(q) == 0 {
		return false
	}
	for _, fact := range append([]string{state.Subject, state.Category}, state.Facts...) {
		for w := range tokens(fact) {
			if len(w) < 4 {
				continue
			}
			if _, ok := q[w]; ok {
				return true
			}
		}
	}
	return false
}

func containsSubject(text, subject string) bool {
	return strings.Contains(normalize(text), normalize(subject))
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(normalize(s)) {
		out[w] = struct{}{}
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
