package protocol

import "github.com/DoyleJ11/bull-client/internal/game"

const (
	IntentCreateLobby     = "create_lobby"
	IntentJoinLobby       = "join_lobby"
	IntentSelectTeam      = "select_team"
	IntentReadyToggle     = "ready_toggle"
	IntentStartGame       = "start_game"
	IntentSubmitAnswer    = "submit_answer"
	IntentSubmitVote      = "submit_vote"
	IntentNextPhase       = "next_phase"
	IntentResetGame       = "reset_game"
	IntentLeaveLobby      = "leave_lobby"
	IntentReconnectByName = "reconnect_by_name"
	IntentReconnectByID   = "reconnect_attempt"
)

// Intent is an outbound request. The struct itself is the payload.
type Intent interface{ Name() string }

type CreateLobby struct {
	PlayerName string `json:"playerName"`
}

type JoinLobby struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

type SelectTeam struct {
	Team game.Team `json:"team"`
}

type ReadyToggle struct{}

type StartGame struct {
	game.GameSettings
}

type SubmitAnswer struct {
	Answer string `json:"answer"`
}

type SubmitVote struct {
	OptionID string `json:"optionId"`
}

type NextPhase struct{}

type ResetGame struct{}

type LeaveLobby struct{}

type ReconnectByName struct {
	PlayerName string `json:"playerName"`
	LobbyCode  string `json:"lobbyCode"`
}

type ReconnectByID struct {
	PlayerID  string `json:"playerId"`
	LobbyCode string `json:"lobbyCode"`
}

func (CreateLobby) Name() string     { return IntentCreateLobby }
func (JoinLobby) Name() string       { return IntentJoinLobby }
func (SelectTeam) Name() string      { return IntentSelectTeam }
func (ReadyToggle) Name() string     { return IntentReadyToggle }
func (StartGame) Name() string       { return IntentStartGame }
func (SubmitAnswer) Name() string    { return IntentSubmitAnswer }
func (SubmitVote) Name() string      { return IntentSubmitVote }
func (NextPhase) Name() string       { return IntentNextPhase }
func (ResetGame) Name() string       { return IntentResetGame }
func (LeaveLobby) Name() string      { return IntentLeaveLobby }
func (ReconnectByName) Name() string { return IntentReconnectByName }
func (ReconnectByID) Name() string   { return IntentReconnectByID }
