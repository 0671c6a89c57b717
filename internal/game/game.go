package game

import (
	"encoding/json"
	"time"
)

type GameType string

const (
	GameTrivia GameType = "trivia"
	GameTwentyQuestions GameType = "twenty_questions"
	GameBingo GameType = "bingo"
)

type SessionState string

const (
	StateWaiting    SessionState = "waiting"
	StateStarting   SessionState = "starting"
	StateInProgress SessionState = "in_progress"
	StatePaused     SessionState = "paused"
	StateCompleted  SessionState = "completed"
	StateAbandoned  SessionState = "abandoned"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Score        int       `json:"score"`
	Streak       int       `json:"streak"`
	BestStreak   int       `json:"best_streak"`
	Correct      int       `json:"correct"`
	Answered     int       `json:"answered"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Settings is the opaque per-session configuration the active strategy
// interprets. The engine only reads the capacity and pacing keys below.
type Settings struct {
	MaxPlayers  int               `json:"max_players"`
	MinPlayers  int               `json:"min_players"`
	MaxRounds   int               `json:"max_rounds"`
	TurnTimeout time.Duration     `json:"turn_timeout"`
	Difficulty  string            `json:"difficulty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Metadata is the game-specific payload nested inside a session. It is
// owned exclusively by the strategy for the session's game type; the
// engine only moves it around as an opaque value.
type Metadata interface {
	GameType() GameType
}

// Session is the authoritative record for one running game. All mutation
// goes through the orchestrator's entry points.
type Session struct {
	ID        string
	GameType  GameType
	State     SessionState
	Players   map[string]*Player
	Settings  Settings
	Metadata  Metadata
	Round     int
	MaxRounds int
	TurnOrder []string
	TurnIndex int
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// CurrentPlayerID returns the id of the player whose turn it is, or ""
// when the session has no armed turn.
func (s *Session) CurrentPlayerID() string {
	if len(s.TurnOrder) == 0 || s.TurnIndex < 0 || s.TurnIndex >= len(s.TurnOrder) {
		return ""
	}
	return s.TurnOrder[s.TurnIndex]
}

// GameAction is one resolved voice command. Immutable once built.
type GameAction struct {
	PlayerID    string
	Type        string
	Payload     map[string]string
	SubmittedAt time.Time
	Confidence  float64
}

// ActionResult is what the voice layer speaks back to the player.
type ActionResult struct {
	OK           bool   `json:"ok"`
	ActionType   string `json:"action_type,omitempty"`
	Spoken       string `json:"spoken"`
	ScoreDelta   int    `json:"score_delta,omitempty"`
	EndsTurn     bool   `json:"ends_turn,omitempty"`
	EndsSession  bool   `json:"ends_session,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

type EventType string

const (
	EvtSessionCreated EventType = "session_created"
	EvtPlayerJoined   EventType = "player_joined"
	EvtGameStarted    EventType = "game_started"
	EvtTurnStarted    EventType = "turn_started"
	EvtTurnSkipped    EventType = "turn_skipped"
	EvtRoundStarted   EventType = "round_started"
	EvtActionApplied  EventType = "action_applied"
	EvtSessionPaused  EventType = "session_paused"
	EvtSessionResumed EventType = "session_resumed"
	EvtGameEnded      EventType = "game_ended"
)

// Event is one lifecycle or game occurrence. Events built with
// Broadcast=false are internal bookkeeping and never reach the bus
// subscribers.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Broadcast bool           `json:"-"`
}

// PlayerStats is the finalized per-player summary computed at end.
type PlayerStats struct {
	PlayerID   string  `json:"player_id"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	BestStreak int     `json:"best_streak"`
	Correct    int     `json:"correct"`
	Answered   int     `json:"answered"`
	Accuracy   float64 `json:"accuracy"`
}

// Stats outlives the session in the live store.
type Stats struct {
	SessionID string        `json:"session_id"`
	GameType  GameType      `json:"game_type"`
	Reason    string        `json:"reason"`
	WinnerID  string        `json:"winner_id,omitempty"`
	Players   []PlayerStats `json:"players"`
	Rounds    int           `json:"rounds"`
	Duration  time.Duration `json:"duration"`
	EndedAt   time.Time     `json:"ended_at"`
}

// View is the read-only projection returned to API callers.
type View struct {
	ID            string       `json:"id"`
	GameType      GameType     `json:"game_type"`
	State         SessionState `json:"state"`
	Players       []Player     `json:"players"`
	Round         int          `json:"round"`
	MaxRounds     int          `json:"max_rounds"`
	TurnOrder     []string     `json:"turn_order"`
	TurnIndex     int          `json:"turn_index"`
	CurrentPlayer string       `json:"current_player,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Snapshot flattens a session into the envelope persisted to the
// snapshot cache. Metadata travels as a tagged blob so a recovered
// session can be rebound to its strategy.
type Snapshot struct {
	ID        string          `json:"id"`
	GameType  GameType        `json:"game_type"`
	State     SessionState    `json:"state"`
	Players   []Player        `json:"players"`
	Settings  Settings        `json:"settings"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Round     int             `json:"round"`
	MaxRounds int             `json:"max_rounds"`
	TurnOrder []string        `json:"turn_order"`
	TurnIndex int             `json:"turn_index"`
	CreatedAt time.Time       `json:"created_at"`
}
