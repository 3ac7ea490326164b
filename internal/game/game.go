package game

import "errors"

var ErrInvalidTeam = errors.New("team must be blue or red")

type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

func (t Team) Valid() bool { return t == TeamBlue || t == TeamRed }

type Role string

const (
	RoleActive    Role = "active"
	RoleSpectator Role = "spectator"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseWriting  Phase = "writing"
	PhaseVoting   Phase = "voting"
	PhaseResults  Phase = "results"
	PhaseFinished Phase = "finished"
)

type LobbyStatus string

const (
	LobbyWaiting LobbyStatus = "waiting"
	LobbyPlaying LobbyStatus = "playing"
)

// Winner is "blue", "red" or "tie". Empty while the game is running.
type Winner string

const (
	WinnerBlue Winner = "blue"
	WinnerRed  Winner = "red"
	WinnerTie  Winner = "tie"
)

type OptionType string

const (
	OptionCorrect   OptionType = "correct"
	OptionIncorrect OptionType = "incorrect"
	OptionPlayer    OptionType = "player"
)

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Team        Team   `json:"team,omitempty"`
	Role        Role   `json:"role,omitempty"`
	IsReady     bool   `json:"isReady"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
	Score       int    `json:"score"`
}

type Teams struct {
	Blue []Player `json:"blue"`
	Red  []Player `json:"red"`
}

func (t Teams) Members(team Team) []Player {
	switch team {
	case TeamBlue:
		return t.Blue
	case TeamRed:
		return t.Red
	default:
		return nil
	}
}

type LobbySettings struct {
	MaxRounds int `json:"maxRounds"`
}

type Lobby struct {
	Code     string        `json:"code"`
	HostID   string        `json:"hostId"`
	Status   LobbyStatus   `json:"status"`
	Players  []Player      `json:"players"`
	Teams    Teams         `json:"teams"`
	Settings LobbySettings `json:"settings"`
}

type Scores struct {
	Blue int `json:"blue"`
	Red  int `json:"red"`
}

type GameState struct {
	Phase        Phase   `json:"phase"`
	CurrentRound int     `json:"currentRound"`
	TotalRounds  int     `json:"totalRounds"`
	Scores       Scores  `json:"scores"`
	Rounds       []Round `json:"rounds,omitempty"`
	Winner       Winner  `json:"winner,omitempty"`
}

type SelectedPlayers struct {
	Blue *Player `json:"blue,omitempty"`
	Red  *Player `json:"red,omitempty"`
}

type OptionOrigin struct {
	Type     OptionType `json:"type"`
	PlayerID string     `json:"playerId,omitempty"`
}

type Option struct {
	ID     string       `json:"id"`
	Text   string       `json:"text"`
	Origin OptionOrigin `json:"origin"`
}

type RoundScoring struct {
	PointsAwarded map[string]int `json:"pointsAwarded,omitempty"`
	NewScores     Scores         `json:"newScores"`
}

type Round struct {
	Number          int               `json:"number"`
	Question        string            `json:"question"`
	CorrectAnswer   string            `json:"correctAnswer,omitempty"`
	IncorrectAnswer string            `json:"incorrectAnswer,omitempty"`
	SelectedPlayers SelectedPlayers   `json:"selectedPlayers"`
	PlayerAnswers   map[string]string `json:"playerAnswers,omitempty"`
	Options         []Option          `json:"options,omitempty"`
	Votes           map[string]string `json:"votes,omitempty"`
	Results         *RoundScoring     `json:"results,omitempty"`
}

// RoundResult is the payload of round_results.
type RoundResult struct {
	RoundNumber   int               `json:"roundNumber"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	PointsAwarded map[string]int    `json:"pointsAwarded,omitempty"`
	NewScores     Scores            `json:"newScores"`
	Votes         map[string]string `json:"votes,omitempty"`
}

// GameSettings is sent with start_game. Zero fields are left to the server.
type GameSettings struct {
	MaxRounds   int `json:"maxRounds,omitempty"`
	WritingTime int `json:"writingTime,omitempty"`
	VotingTime  int `json:"votingTime,omitempty"`
}
