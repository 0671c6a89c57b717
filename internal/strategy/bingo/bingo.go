// Package bingo is the card-matching rule set. It is free-play: any
// player may act at any time, so the engine's turn rotation only paces
// item calls.
package bingo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/ai"
	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/strategy"
)

const cardSize = 5

// Card is one player's 5x5 grid, row-major. The center cell is free.
type Card struct {
	Items  []string `json:"items"`
	Marked []bool   `json:"marked"`
}

// State is the bingo payload stored in session metadata.
type State struct {
	Pool     []string         `json:"pool"`
	Called   []string         `json:"called"`
	Cards    map[string]*Card `json:"cards"`
	WinnerID string           `json:"winner_id,omitempty"`
}

func (*State) GameType() game.GameType { return game.GameBingo }

type Strategy struct {
	gen ai.ContentGenerator
	log *zap.Logger
	rng *rand.Rand
}

func New(gen ai.ContentGenerator, log *zap.Logger, seed int64) *Strategy {
	return &Strategy{gen: gen, log: log, rng: rand.New(rand.NewSource(seed))}
}

func (*Strategy) Type() game.GameType { return game.GameBingo }
func (*Strategy) TurnBased() bool     { return false }

func (s *Strategy) GenerateContent(ctx context.Context, sess *game.Session) (game.Metadata, error) {
	theme := sess.Settings.Extra["theme"]
	if theme == "" {
		theme = "things you find in a kitchen"
	}
	const poolSize = 40

	prompt := fmt.Sprintf(
		"List %d short distinct bingo items themed %q, one per line, each prefixed with '- '.", poolSize, theme)
	text, err := s.gen.Generate(ctx, prompt, sess.Settings.Difficulty, poolSize)
	if err != nil {
		return nil, err
	}

	pool := parseItems(text)
	if len(pool) < cardSize*cardSize {
		return nil, fmt.Errorf("%w: only %d usable bingo items generated", game.ErrUpstreamFailure, len(pool))
	}

	state := &State{Pool: pool, Cards: make(map[string]*Card, len(sess.Players))}
	for _, playerID := range sess.TurnOrder {
		state.Cards[playerID] = s.dealCard(pool)
	}
	s.log.Debug("bingo cards dealt",
		zap.String("session_id", sess.ID), zap.Int("pool", len(pool)))

	return state, nil
}

func parseItems(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" || len(line) > 60 {
			continue
		}
		key := normalize(line)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

func (s *Strategy) dealCard(pool []string) *Card {
	idx := s.rng.Perm(len(pool))
	card := &Card{
		Items:  make([]string, cardSize*cardSize),
		Marked: make([]bool, cardSize*cardSize),
	}
	for i := 0; i < cardSize*cardSize; i++ {
		card.Items[i] = pool[idx[i]]
	}
	center := (cardSize*cardSize - 1) / 2
	card.Items[center] = "FREE"
	card.Marked[center] = true
	return card
}

func (s *Strategy) Keywords() []strategy.KeywordRule {
	capture := func(actionType string) func(string) (string, map[string]string) {
		return func(text string) (string, map[string]string) {
			return actionType, map[string]string{"text": text}
		}
	}
	return []strategy.KeywordRule{
		{Phrase: "bingo", Resolve: capture("bingo")},
		{Phrase: "i have", Resolve: capture("mark")},
		{Phrase: "mark", Resolve: capture("mark")},
		{Phrase: "got it", Resolve: capture("mark")},
		{Phrase: "next item", Resolve: capture("call")},
		{Phrase: "call the next", Resolve: capture("call")},
		{Phrase: "my card", Resolve: capture("card")},
	}
}

func (s *Strategy) ProcessAction(sess *game.Session, action game.GameAction) (game.ActionResult, error) {
	state, ok := sess.Metadata.(*State)
	if !ok || len(state.Pool) == 0 {
		return game.ActionResult{}, fmt.Errorf("%w: bingo content missing", game.ErrInvalidState)
	}
	player := sess.Players[action.PlayerID]
	card := state.Cards[action.PlayerID]
	if card == nil {
		return game.ActionResult{}, fmt.Errorf("%w: no card for player %s", game.ErrNotAuthorized, action.PlayerID)
	}

	switch action.Type {
	case "call":
		if player.Role != game.RoleHost {
			return game.ActionResult{}, fmt.Errorf("%w: only the host calls items", game.ErrNotAuthorized)
		}
		if len(state.Called) >= len(state.Pool) {
			return game.ActionResult{
				OK:          true,
				ActionType:  "call",
				Spoken:      "Every item has been called. Last chance for bingo!",
				EndsSession: false,
			}, nil
		}
		item := state.Pool[len(state.Called)]
		state.Called = append(state.Called, item)
		return game.ActionResult{
			OK:         true,
			ActionType: "call",
			Spoken:     fmt.Sprintf("The next item is: %s.", item),
		}, nil

	case "mark":
		player.Answered++
		item, cell := matchCell(card, action.Payload["text"])
		if cell < 0 {
			player.Streak = 0
			return game.ActionResult{
				OK:         true,
				ActionType: "mark",
				Spoken:     "That's not on your card.",
			}, nil
		}
		if !wasCalled(state, item) {
			player.Streak = 0
			return game.ActionResult{
				OK:         true,
				ActionType: "mark",
				Spoken:     fmt.Sprintf("%s hasn't been called yet.", item),
			}, nil
		}
		if card.Marked[cell] {
			return game.ActionResult{
				OK:         true,
				ActionType: "mark",
				Spoken:     fmt.Sprintf("%s is already marked.", item),
			}, nil
		}
		card.Marked[cell] = true
		player.Correct++
		player.Streak++
		if player.Streak > player.BestStreak {
			player.BestStreak = player.Streak
		}
		player.Score += 10
		return game.ActionResult{
			OK:         true,
			ActionType: "mark",
			Spoken:     fmt.Sprintf("Marked %s!", item),
			ScoreDelta: 10,
		}, nil

	case "bingo":
		player.Answered++
		if !hasBingo(card) {
			player.Streak = 0
			return game.ActionResult{
				OK:         true,
				ActionType: "bingo",
				Spoken:     "Not yet! You don't have five in a row.",
			}, nil
		}
		state.WinnerID = action.PlayerID
		player.Correct++
		player.Score += 500
		return game.ActionResult{
			OK:          true,
			ActionType:  "bingo",
			Spoken:      fmt.Sprintf("BINGO! %s wins!", player.Name),
			ScoreDelta:  500,
			EndsSession: true,
		}, nil

	case "card":
		unmarked := 0
		for i, m := range card.Marked {
			if !m && card.Items[i] != "FREE" {
				unmarked++
			}
		}
		return game.ActionResult{
			OK:         true,
			ActionType: "card",
			Spoken:     fmt.Sprintf("You have %d squares left to mark.", unmarked),
		}, nil

	default:
		return game.ActionResult{}, fmt.Errorf("%w: bingo cannot handle %q", game.ErrAmbiguousInput, action.Type)
	}
}

// matchCell finds the card cell whose item the player most plausibly
// said. Containment either way so "the red stand mixer" matches "stand
// mixer".
func matchCell(card *Card, text string) (string, int) {
	spoken := normalize(text)
	for i, item := range card.Items {
		if item == "FREE" {
			continue
		}
		n := normalize(item)
		if n == "" {
			continue
		}
		if spoken != "" && (strings.Contains(spoken, n) || strings.Contains(n, spoken)) {
			return item, i
		}
	}
	return "", -1
}

func wasCalled(state *State, item string) bool {
	n := normalize(item)
	for _, c := range state.Called {
		if normalize(c) == n {
			return true
		}
	}
	return false
}

func hasBingo(card *Card) bool {
	at := func(r, c int) bool { return card.Marked[r*cardSize+c] }
	for i := 0; i < cardSize; i++ {
		row, col := true, true
		for j := 0; j < cardSize; j++ {
			row = row && at(i, j)
			col = col && at(j, i)
		}
		if row || col {
			return true
		}
	}
	diag, anti := true, true
	for i := 0; i < cardSize; i++ {
		diag = diag && at(i, i)
		anti = anti && at(i, cardSize-1-i)
	}
	return diag || anti
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
