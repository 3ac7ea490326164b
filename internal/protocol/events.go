package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/bull-client/internal/game"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMissingField     = errors.New("missing field")
)

const (
	EventLobbyCreated      = "lobby_created"
	EventLobbyJoined       = "lobby_joined"
	EventLobbyUpdated      = "lobby_updated"
	EventPlayerJoined      = "player_joined"
	EventPlayerLeft        = "player_left"
	EventTeamUpdated       = "team_updated"
	EventGameStarted       = "game_started"
	EventGameStateUpdated  = "game_state_updated"
	EventRoundStarted      = "round_started"
	EventWritingPhase      = "writing_phase"
	EventVotingPhase       = "voting_phase"
	EventRoundResults      = "round_results"
	EventTimeUpdate        = "time_update"
	EventGameFinished      = "game_finished"
	EventError             = "error"
	EventValidationError   = "validation_error"
	EventReconnected       = "reconnected"
	EventPlayerReconnected = "player_reconnected"
)

// Event is one decoded inbound message. Implementations are pointers to the
// payload structs below.
type Event interface {
	Name() string
	validate() error
}

type LobbyCreated struct {
	Lobby    *game.Lobby `json:"lobby"`
	PlayerID string      `json:"playerId"`
}

type LobbyJoined struct {
	Lobby    *game.Lobby `json:"lobby"`
	PlayerID string      `json:"playerId"`
}

type LobbyUpdated struct {
	Lobby *game.Lobby `json:"lobby"`
}

type PlayerJoined struct {
	Player *game.Player `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type TeamUpdated struct {
	Teams *game.Teams `json:"teams"`
}

type GameStarted struct {
	GameState *game.GameState `json:"gameState"`
}

type GameStateUpdated struct {
	GameState *game.GameState `json:"gameState"`
}

type RoundStarted struct {
	Round         *game.Round `json:"round"`
	TimeRemaining int         `json:"timeRemaining"`
}

type WritingPhase struct {
	TimeRemaining int `json:"timeRemaining"`
}

type VotingPhase struct {
	Options       []game.Option `json:"options"`
	TimeRemaining int           `json:"timeRemaining"`
}

type RoundResults struct {
	Results *game.RoundResult `json:"results"`
}

type TimeUpdate struct {
	TimeRemaining int `json:"timeRemaining"`
}

type GameFinished struct {
	Winner      game.Winner  `json:"winner"`
	FinalScores *game.Scores `json:"finalScores"`
}

type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Reconnected struct {
	Lobby     *game.Lobby     `json:"lobby"`
	GameState *game.GameState `json:"gameState,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
}

type PlayerReconnected struct {
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

func (*LobbyCreated) Name() string      { return EventLobbyCreated }
func (*LobbyJoined) Name() string       { return EventLobbyJoined }
func (*LobbyUpdated) Name() string      { return EventLobbyUpdated }
func (*PlayerJoined) Name() string      { return EventPlayerJoined }
func (*PlayerLeft) Name() string        { return EventPlayerLeft }
func (*TeamUpdated) Name() string       { return EventTeamUpdated }
func (*GameStarted) Name() string       { return EventGameStarted }
func (*GameStateUpdated) Name() string  { return EventGameStateUpdated }
func (*RoundStarted) Name() string      { return EventRoundStarted }
func (*WritingPhase) Name() string      { return EventWritingPhase }
func (*VotingPhase) Name() string       { return EventVotingPhase }
func (*RoundResults) Name() string      { return EventRoundResults }
func (*TimeUpdate) Name() string        { return EventTimeUpdate }
func (*GameFinished) Name() string      { return EventGameFinished }
func (*ServerError) Name() string       { return EventError }
func (*ValidationError) Name() string   { return EventValidationError }
func (*Reconnected) Name() string       { return EventReconnected }
func (*PlayerReconnected) Name() string { return EventPlayerReconnected }

func (e *LobbyCreated) validate() error { return lobbyWithPlayer(e.Lobby, e.PlayerID) }
func (e *LobbyJoined) validate() error  { return lobbyWithPlayer(e.Lobby, e.PlayerID) }
func (e *LobbyUpdated) validate() error { return checkLobby(e.Lobby) }

func (e *PlayerJoined) validate() error {
	if e.Player == nil || e.Player.ID == "" {
		return missing("player")
	}
	return nil
}

func (e *PlayerLeft) validate() error {
	if e.PlayerID == "" {
		return missing("playerId")
	}
	return nil
}

func (e *TeamUpdated) validate() error {
	if e.Teams == nil {
		return missing("teams")
	}
	return nil
}

func (e *GameStarted) validate() error      { return checkGameState(e.GameState) }
func (e *GameStateUpdated) validate() error { return checkGameState(e.GameState) }

func (e *RoundStarted) validate() error {
	if e.Round == nil {
		return missing("round")
	}
	return nil
}

func (*WritingPhase) validate() error { return nil }
func (*TimeUpdate) validate() error   { return nil }

func (e *VotingPhase) validate() error {
	for i, o := range e.Options {
		if o.ID == "" {
			return missing(fmt.Sprintf("options[%d].id", i))
		}
	}
	return nil
}

func (e *RoundResults) validate() error {
	if e.Results == nil {
		return missing("results")
	}
	return nil
}

func (e *GameFinished) validate() error {
	if e.FinalScores == nil {
		return missing("finalScores")
	}
	switch e.Winner {
	case game.WinnerBlue, game.WinnerRed, game.WinnerTie:
		return nil
	default:
		return fmt.Errorf("%w: winner %q", ErrMalformedPayload, e.Winner)
	}
}

func (e *ServerError) validate() error {
	if e.Message == "" {
		return missing("message")
	}
	return nil
}

func (e *ValidationError) validate() error {
	if e.Message == "" {
		return missing("message")
	}
	return nil
}

func (e *Reconnected) validate() error { return checkLobby(e.Lobby) }

func (e *PlayerReconnected) validate() error {
	if e.PlayerName == "" {
		return missing("playerName")
	}
	return nil
}

var factories = map[string]func() Event{
	EventLobbyCreated:      func() Event { return &LobbyCreated{} },
	EventLobbyJoined:       func() Event { return &LobbyJoined{} },
	EventLobbyUpdated:      func() Event { return &LobbyUpdated{} },
	EventPlayerJoined:      func() Event { return &PlayerJoined{} },
	EventPlayerLeft:        func() Event { return &PlayerLeft{} },
	EventTeamUpdated:       func() Event { return &TeamUpdated{} },
	EventGameStarted:       func() Event { return &GameStarted{} },
	EventGameStateUpdated:  func() Event { return &GameStateUpdated{} },
	EventRoundStarted:      func() Event { return &RoundStarted{} },
	EventWritingPhase:      func() Event { return &WritingPhase{} },
	EventVotingPhase:       func() Event { return &VotingPhase{} },
	EventRoundResults:      func() Event { return &RoundResults{} },
	EventTimeUpdate:        func() Event { return &TimeUpdate{} },
	EventGameFinished:      func() Event { return &GameFinished{} },
	EventError:             func() Event { return &ServerError{} },
	EventValidationError:   func() Event { return &ValidationError{} },
	EventReconnected:       func() Event { return &Reconnected{} },
	EventPlayerReconnected: func() Event { return &PlayerReconnected{} },
}

// InboundEvents lists every event name the server may emit.
func InboundEvents() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// Decode parses and checks one inbound payload. Unknown JSON fields are
// ignored; missing required ones are an error.
func Decode(name string, data json.RawMessage) (Event, error) {
	newEvent, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	ev := newEvent()
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrMalformedPayload, err)
	}
	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return ev, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func checkLobby(l *game.Lobby) error {
	if l == nil {
		return missing("lobby")
	}
	if l.Code == "" {
		return missing("lobby.code")
	}
	return nil
}

func lobbyWithPlayer(l *game.Lobby, playerID string) error {
	if err := checkLobby(l); err != nil {
		return err
	}
	if playerID == "" {
		return missing("playerId")
	}
	return nil
}

func checkGameState(g *game.GameState) error {
	if g == nil {
		return missing("gameState")
	}
	if g.Phase == "" {
		return missing("gameState.phase")
	}
	return nil
}
