// Package trivia is the question-and-answer rule set.
package trivia

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/ai"
	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/strategy"
)

type Question struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// State is the trivia payload stored in session metadata.
type State struct {
	Questions []Question `json:"questions"`
	Current   int        `json:"current"`
}

func (*State) GameType() game.GameType { return game.GameTrivia }

type Strategy struct {
	gen ai.ContentGenerator
	log *zap.Logger
}

func New(gen ai.ContentGenerator, log *zap.Logger) *Strategy {
	return &Strategy{gen: gen, log: log}
}

func (*Strategy) Type() game.GameType { return game.GameTrivia }
func (*Strategy) TurnBased() bool     { return true }

func (s *Strategy) GenerateContent(ctx context.Context, sess *game.Session) (game.Metadata, error) {
	count := sess.MaxRounds * len(sess.Players)
	if count < 10 {
		count = 10
	}
	topic := sess.Settings.Extra["topic"]
	if topic == "" {
		topic = "general knowledge"
	}

	prompt := fmt.Sprintf(
		"Write %d trivia questions about %s. Format each as two lines:\nQ: <question>\nA: <short answer>", count, topic)
	text, err := s.gen.Generate(ctx, prompt, sess.Settings.Difficulty, count)
	if err != nil {
		return nil, err
	}

	questions := parseQuestions(text)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable trivia questions in generated text", game.ErrUpstreamFailure)
	}
	s.log.Debug("trivia content generated",
		zap.String("session_id", sess.ID), zap.Int("questions", len(questions)))

	return &State{Questions: questions}, nil
}

// parseQuestions pairs Q:/A: lines, skipping malformed blocks rather
// than failing the whole batch.
func parseQuestions(text string) []Question {
	var out []Question
	var pending string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Q:"):
			pending = strings.TrimSpace(strings.TrimPrefix(line, "Q:"))
		case strings.HasPrefix(line, "A:"):
			answer := strings.TrimSpace(strings.TrimPrefix(line, "A:"))
			if pending != "" && answer != "" {
				out = append(out, Question{Prompt: pending, Answer: answer})
			}
			pending = ""
		}
	}
	return out
}

func (s *Strategy) Keywords() []strategy.KeywordRule {
	capture := func(actionType string) func(string) (string, map[string]string) {
		return func(text string) (string, map[string]string) {
			return actionType, map[string]string{"text": text}
		}
	}
	return []strategy.KeywordRule{
		{Phrase: "answer is", Resolve: capture("answer")},
		{Phrase: "my answer", Resolve: capture("answer")},
		{Phrase: "i think it's", Resolve: capture("answer")},
		{Phrase: "skip", Resolve: capture("skip")},
		{Phrase: "pass", Resolve: capture("skip")},
		{Phrase: "hint", Resolve: capture("hint")},
		{Phrase: "repeat", Resolve: capture("repeat")},
		{Phrase: "say it again", Resolve: capture("repeat")},
	}
}

func (s *Strategy) ProcessAction(sess *game.Session, action game.GameAction) (game.ActionResult, error) {
	state, ok := sess.Metadata.(*State)
	if !ok || len(state.Questions) == 0 {
		return game.ActionResult{}, fmt.Errorf("%w: trivia content missing", game.ErrInvalidState)
	}
	player := sess.Players[action.PlayerID]
	q := state.Questions[state.Current%len(state.Questions)]

	switch action.Type {
	case "answer":
		player.Answered++
		if matchesAnswer(action.Payload["text"], q.Answer) {
			player.Correct++
			player.Streak++
			if player.Streak > player.BestStreak {
				player.BestStreak = player.Streak
			}
			delta := 100 + 10*(player.Streak-1)
			player.Score += delta
			state.Current++
			return game.ActionResult{
				OK:         true,
				ActionType: "answer",
				Spoken:     fmt.Sprintf("Correct! The answer was %s. %d points.", q.Answer, delta),
				ScoreDelta: delta,
				EndsTurn:   true,
			}, nil
		}
		player.Streak = 0
		state.Current++
		return game.ActionResult{
			OK:         true,
			ActionType: "answer",
			Spoken:     fmt.Sprintf("Not quite. The answer was %s.", q.Answer),
			EndsTurn:   true,
		}, nil

	case "skip":
		player.Streak = 0
		state.Current++
		return game.ActionResult{
			OK:         true,
			ActionType: "skip",
			Spoken:     fmt.Sprintf("Skipping. The answer was %s.", q.Answer),
			EndsTurn:   true,
		}, nil

	case "hint":
		return game.ActionResult{
			OK:         true,
			ActionType: "hint",
			Spoken:     hintFor(q.Answer),
		}, nil

	case "repeat":
		return game.ActionResult{
			OK:         true,
			ActionType: "repeat",
			Spoken:     q.Prompt,
		}, nil

	default:
		return game.ActionResult{}, fmt.Errorf("%w: trivia cannot handle %q", game.ErrAmbiguousInput, action.Type)
	}
}

func matchesAnswer(spoken, answer string) bool {
	spoken = normalize(spoken)
	answer = normalize(answer)
	if answer == "" {
		return false
	}
	return strings.Contains(spoken, answer)
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

func hintFor(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "No hint available."
	}
	words := strings.Fields(answer)
	first, _ := utf8.DecodeRuneInString(answer)
	return fmt.Sprintf("It starts with %q and has %d words.",
		strings.ToUpper(string(first)), len(words))
}
