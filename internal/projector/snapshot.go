package projector

import "github.com/DoyleJ11/bull-client/internal/game"

type Page string

const (
	PageHome  Page = "home"
	PageLobby Page = "lobby"
	PageGame  Page = "game"
)

// Snapshot is the whole client-side view of the game. Values are never
// modified after they are published: handlers build a new Snapshot and copy
// whatever nested value they change.
type Snapshot struct {
	Version     uint64          `json:"version"`
	CurrentPage Page            `json:"currentPage"`
	Lobby       *game.Lobby     `json:"lobby,omitempty"`
	GameState   *game.GameState `json:"gameState,omitempty"`
	PlayerID    string          `json:"playerId,omitempty"`
	PlayerName  string          `json:"playerName,omitempty"`
	Error       string          `json:"error,omitempty"`
	IsConnected bool            `json:"isConnected"`
	Round       RoundData       `json:"round"`
	Pending     Pending         `json:"pending"`
}

// RoundData is per-round state that only lives between server events.
type RoundData struct {
	TimeRemaining int               `json:"timeRemaining"`
	Current       *game.Round       `json:"current,omitempty"`
	Options       []game.Option     `json:"options,omitempty"`
	LastResults   *game.RoundResult `json:"lastResults,omitempty"`
}

type Optimistic[T any] struct {
	Value      T    `json:"value"`
	Optimistic bool `json:"optimistic"`
}

// Pending holds intents sent to the server but not yet reflected by it.
type Pending struct {
	Ready  Optimistic[bool]   `json:"ready"`
	Answer Optimistic[string] `json:"answer"`
	Vote   Optimistic[string] `json:"vote"`
}

type PendingKind int

const (
	PendingReady PendingKind = iota
	PendingAnswer
	PendingVote
)

func initialSnapshot() Snapshot {
	return Snapshot{CurrentPage: PageHome}
}

func (s Snapshot) IsHost() bool { return s.Lobby.IsHost(s.PlayerID) }

func (s Snapshot) CurrentPlayer() (game.Player, bool) { return s.Lobby.Player(s.PlayerID) }

func (s Snapshot) CanStartGame() bool { return s.Lobby.CanStart(s.PlayerID) }

func (s Snapshot) IsGameActive() bool { return s.GameState.IsActive() }

func (s Snapshot) GamePhase() game.Phase {
	if s.GameState == nil {
		return ""
	}
	return s.GameState.Phase
}

func (s Snapshot) Scores() (game.Scores, bool) {
	if s.GameState == nil {
		return game.Scores{}, false
	}
	return s.GameState.Scores, true
}

// IsReady prefers an unconfirmed local toggle over the server's flag.
func (s Snapshot) IsReady() bool {
	if s.Pending.Ready.Optimistic {
		return s.Pending.Ready.Value
	}
	p, _ := s.CurrentPlayer()
	return p.IsReady
}
