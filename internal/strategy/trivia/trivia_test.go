package trivia

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

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
		GameType: game.GameTrivia,
		State:    game.StateInProgress,
		Players: map[string]*game.Player{
			"p1": {ID: "p1", Name: "Avery", JoinedAt: time.Now()},
		},
		Settings:  game.Settings{},
		Metadata:  state,
		MaxRounds: 3,
		TurnOrder: []string{"p1"},
	}
}

func TestGenerateContent_LenientParse(t *testing.T) {
	gen := &stubGen{text: `
Q: What is the capital of France?
A: Paris

some stray commentary the model added

Q: malformed block with no answer
Q: Which planet is red?
A: Mars
A: orphan answer line
`}
	s := New(gen, zap.NewNop())

	meta, err := s.GenerateContent(context.Background(), sessionWith(nil))
	require.NoError(t, err)

	state, ok := meta.(*State)
	require.True(t, ok)
	require.Len(t, state.Questions, 2, "malformed blocks are skipped, not fatal")
	require.Equal(t, "Paris", state.Questions[0].Answer)
}

func TestGenerateContent_NoUsableQuestions(t *testing.T) {
	s := New(&stubGen{text: "sorry, I cannot help with that"}, zap.NewNop())
	_, err := s.GenerateContent(context.Background(), sessionWith(nil))
	require.ErrorIs(t, err, game.ErrUpstreamFailure)
}

func TestProcessAction_CorrectAnswerScoresAndEndsTurn(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(&State{Questions: []Question{
		{Prompt: "Capital of France?", Answer: "Paris"},
		{Prompt: "Red planet?", Answer: "Mars"},
	}})

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "answer",
		Payload: map[string]string{"text": "the answer is paris"},
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.True(t, res.EndsTurn)
	require.Equal(t, 100, res.ScoreDelta)

	p := sess.Players["p1"]
	require.Equal(t, 100, p.Score)
	require.Equal(t, 1, p.Streak)
	require.Equal(t, 1, p.Correct)

	// streak bonus on the next correct answer
	res, err = s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "answer",
		Payload: map[string]string{"text": "my answer is mars"},
	})
	require.NoError(t, err)
	require.Equal(t, 110, res.ScoreDelta)
	require.Equal(t, 2, p.BestStreak)
}

func TestProcessAction_WrongAnswerBreaksStreak(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(&State{Questions: []Question{{Prompt: "Capital of France?", Answer: "Paris"}}})
	sess.Players["p1"].Streak = 3

	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "p1", Type: "answer",
		Payload: map[string]string{"text": "the answer is london"},
	})
	require.NoError(t, err)
	require.True(t, res.EndsTurn)
	require.Zero(t, res.ScoreDelta)
	require.Zero(t, sess.Players["p1"].Streak)
}

func TestProcessAction_HintDoesNotEndTurn(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(&State{Questions: []Question{{Prompt: "Capital of France?", Answer: "Paris"}}})

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "hint"})
	require.NoError(t, err)
	require.False(t, res.EndsTurn)
	require.Contains(t, res.Spoken, `"P"`)

	res, err = s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "repeat"})
	require.NoError(t, err)
	require.False(t, res.EndsTurn)
	require.Equal(t, "Capital of France?", res.Spoken)
}

func TestProcessAction_HintHandlesMultiByteAnswer(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(&State{Questions: []Question{{Prompt: "Capital of Mexico?", Answer: "Ciudad de México"}}})

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "hint"})
	require.NoError(t, err)
	require.Contains(t, res.Spoken, `"C"`)

	// a multi-byte leading rune comes back whole, not as a broken byte
	sess = sessionWith(&State{Questions: []Question{{Prompt: "Fortress off Gothenburg?", Answer: "Älvsborg"}}})
	res, err = s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "hint"})
	require.NoError(t, err)
	require.True(t, utf8.ValidString(res.Spoken))
	require.Contains(t, res.Spoken, `"Ä"`)
}

func TestProcessAction_SkipEndsTurnWithoutScore(t *testing.T) {
	s := New(&stubGen{}, zap.NewNop())
	sess := sessionWith(&State{Questions: []Question{
		{Prompt: "Capital of France?", Answer: "Paris"},
		{Prompt: "Red planet?", Answer: "Mars"},
	}})

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "p1", Type: "skip"})
	require.NoError(t, err)
	require.True(t, res.EndsTurn)
	require.Zero(t, sess.Players["p1"].Score)

	state := sess.Metadata.(*State)
	require.Equal(t, 1, state.Current)
}
