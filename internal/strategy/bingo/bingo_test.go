package bingo

import (
	"context"
	"fmt"
	"strings"
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

func poolText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "- item number %d\n", i)
	}
	return b.String()
}

func newSession(players ...string) *game.Session {
	sess := &game.Session{
		ID:       "s1",
		GameType: game.GameBingo,
		State:    game.StateInProgress,
		Players:  make(map[string]*game.Player),
	}
	for i, p := range players {
		role := game.RolePlayer
		if i == 0 {
			role = game.RoleHost
		}
		sess.Players[p] = &game.Player{ID: p, Name: p, Role: role}
		sess.TurnOrder = append(sess.TurnOrder, p)
	}
	return sess
}

func generated(t *testing.T, players ...string) (*Strategy, *game.Session, *State) {
	t.Helper()
	s := New(&stubGen{text: poolText(40)}, zap.NewNop(), 1)
	sess := newSession(players...)
	meta, err := s.GenerateContent(context.Background(), sess)
	require.NoError(t, err)
	sess.Metadata = meta
	return s, sess, meta.(*State)
}

func TestGenerateContent_DealsACardPerPlayer(t *testing.T) {
	_, _, state := generated(t, "host", "p2")

	require.Len(t, state.Cards, 2)
	for _, card := range state.Cards {
		require.Len(t, card.Items, 25)
		require.Equal(t, "FREE", card.Items[12])
		require.True(t, card.Marked[12])
	}
}

func TestGenerateContent_DeduplicatesAndRequiresEnoughItems(t *testing.T) {
	s := New(&stubGen{text: "- egg\n- egg\n- Egg\n- whisk\n"}, zap.NewNop(), 1)
	_, err := s.GenerateContent(context.Background(), newSession("host"))
	require.ErrorIs(t, err, game.ErrUpstreamFailure)
}

func TestCall_HostOnlyAndInPoolOrder(t *testing.T) {
	s, sess, state := generated(t, "host", "p2")

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "host", Type: "call"})
	require.NoError(t, err)
	require.Contains(t, res.Spoken, state.Pool[0])
	require.Equal(t, []string{state.Pool[0]}, state.Called)

	_, err = s.ProcessAction(sess, game.GameAction{PlayerID: "p2", Type: "call"})
	require.ErrorIs(t, err, game.ErrNotAuthorized)
}

func TestMark_OnlyCalledItemsScore(t *testing.T) {
	s, sess, state := generated(t, "host")
	card := state.Cards["host"]

	// pick an unmarked cell and speak its item before it was called
	item := card.Items[0]
	res, err := s.ProcessAction(sess, game.GameAction{
		PlayerID: "host", Type: "mark",
		Payload: map[string]string{"text": "i have " + item},
	})
	require.NoError(t, err)
	require.Contains(t, res.Spoken, "hasn't been called")
	require.False(t, card.Marked[0])

	state.Called = append(state.Called, item)
	res, err = s.ProcessAction(sess, game.GameAction{
		PlayerID: "host", Type: "mark",
		Payload: map[string]string{"text": "i have " + item},
	})
	require.NoError(t, err)
	require.Equal(t, 10, res.ScoreDelta)
	require.True(t, card.Marked[0])
	require.Equal(t, 10, sess.Players["host"].Score)

	res, err = s.ProcessAction(sess, game.GameAction{
		PlayerID: "host", Type: "mark",
		Payload: map[string]string{"text": "i have " + item},
	})
	require.NoError(t, err)
	require.Contains(t, res.Spoken, "already marked")
	require.Zero(t, res.ScoreDelta)
}

func TestBingo_RejectedWithoutFiveInARow(t *testing.T) {
	s, sess, _ := generated(t, "host")

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "host", Type: "bingo"})
	require.NoError(t, err)
	require.False(t, res.EndsSession)
	require.Contains(t, res.Spoken, "Not yet")
}

func TestBingo_CompletedRowWinsAndEndsSession(t *testing.T) {
	s, sess, state := generated(t, "host")
	card := state.Cards["host"]
	for c := 0; c < 5; c++ {
		card.Marked[c] = true // top row
	}

	res, err := s.ProcessAction(sess, game.GameAction{PlayerID: "host", Type: "bingo"})
	require.NoError(t, err)
	require.True(t, res.EndsSession)
	require.Equal(t, 500, res.ScoreDelta)
	require.Equal(t, "host", state.WinnerID)
}

func TestHasBingo_Diagonal(t *testing.T) {
	card := &Card{Items: make([]string, 25), Marked: make([]bool, 25)}
	for i := 0; i < 5; i++ {
		card.Marked[i*5+i] = true
	}
	require.True(t, hasBingo(card))

	card.Marked[12] = false
	require.False(t, hasBingo(card))
}
