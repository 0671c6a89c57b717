package twentyq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/game"
)

type stubGen struct {
	text string
	err  error
}

func (g *stubGen) Generate(context.Context, string, string, int) (string, error) {
	return g.text, g.err
}

func sessionWith(state *State) *game.Session {
	return &game.Session{
		ID:       "s1",
		GameType: game.GameTwentyQuestions,
		State:    game.StateInProgress,
		Players: map[string]*game.Player{
			"p1": {ID: "p1", Name: "Avery"},
		},
		Metadata:  state,
		TurnOrder: []string{"p1"},
	}
}

func elephantState() *State {
	return &State{
		Subject:  "an elephant",
		Category: "animal",
		Facts:    []string{"it has a trunk", "it lives in Africa and Asia"},
		Limit:    20,
	}
}

func TestGenerateContent_ParsesSubjectBlock(t *testing.T) {
	gen := &stubGen{text: `
Subject: an elephant
Category: animal
Fact: it has a trunk
Fact: it is the largest land mammal
`}
	s := New(gen, zap.NewNop())

	meta, err := s.GenerateContent(context.Background(), sessionWith(nil))
	require.NoError(t, err)

	state := meta.(*State)
	require.Equal(t, "an elephant", state.Subject)
	require.Equal(t, 20, state.Limit)
	require.Len(t, state.Facts, 2)
}

func TestGenerateContent_MissingSubjectFails(t *testing.T) {
	s := New(&stubGen{text: "Category: animal"}, zap.NewNop())
	_, err := s.GenerateContent(context.Background(), sessionWith(nil))
	require.ErrorIs(t, err, game.ErrUpstreamFailure)
}

func TestQuestion_ConsumesBudgetAndEndsTurn(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(elephantState())

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "question",
		Payload: map[string]string{"text": "does it have a trunk"},
	})
	require.NoError(t, err)
	require.True(t, res.EndsTurn)
	require.False(t, res.EndsSession)
	require.Contains(t, res.Spoken, "Yes.")
	require.Contains(t, res.Spoken, "19 questions left")

	res, err = s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "question",
		Payload: map[string]string{"text": "is it smaller than a breadbox"},
	})
	require.NoError(t, err)
	require.Contains(t, res.Spoken, "No.")
	require.Equal(t, 2, sess.Metadata.(*State).Asked)
}

func TestQuestion_BudgetExhaustionEndsSession(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	state := elephantState()
	state.Asked = 19
	sess := sessionWith(state)

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "question",
		Payload: map[string]string{"text": "is it heavy"},
	})
	require.NoError(t, err)
	require.True(t, res.EndsSession)
	require.Contains(t, res.Spoken, "an elephant")
}

func TestGuess_CorrectScoresByRemainingBudget(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	state := elephantState()
	state.Asked = 5
	sess := sessionWith(state)

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "guess",
		Payload: map[string]string{"text": "my guess is an elephant"},
	})
	require.NoError(t, err)
	require.True(t, res.EndsSession)
	require.Equal(t, 50+10*15, res.ScoreDelta)
	require.Equal(t, res.ScoreDelta, sess.Players["p1"].Score)
	require.True(t, state.Solved)
}

func TestGuess_WrongCostsAQuestion(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(elephantState())
	sess.Players["p1"].Streak = 2

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "guess",
		Payload: map[string]string{"text": "my guess is a rhino"},
	})
	require.NoError(t, err)
	require.True(t, res.EndsTurn)
	require.False(t, res.EndsSession)
	require.Equal(t, 1, sess.Metadata.(*State).Asked)
	require.Zero(t, sess.Players["p1"].Streak)
}

func TestAnswersYes_TokenOverlap(t *testing.T) {
	state := elephantState()

	// a token (>= 4 chars) shared with a fact answers yes
	require.True(t, answersYes(state, "does it have a trunk"))
	// subject and category tokens count too
	require.True(t, answersYes(state, "is it an elephant"))
	require.False(t, answersYes(state, "can it fly"))
	// short shared words like "it" never match on their own
	require.False(t, answersYes(state, "is it a he or an it"))
	require.False(t, answersYes(state, ""))
}

func TestRemaining_DoesNotEndTurn(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	state := elephantState()
	state.Asked = 7
	sess := sessionWith(state)

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "remaining"})
	require.NoError(t, err)
	require.False(t, res.EndsTurn)
	require.Contains(t, res.Spoken, "13 questions left")
}
