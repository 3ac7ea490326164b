package client

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/bull-client/internal/game"
)

// Limits shared with the game server.
const (
	MaxNameLength   = 50
	LobbyCodeLength = 6
	MaxAnswerLength = 120
)

var (
	ErrNameRequired = errors.New("player name is required")
	ErrNameTooLong  = errors.New("player name is too long")
	ErrNameInvalid  = errors.New("player name may only contain letters, digits, spaces, '-' and '_'")

	ErrCodeRequired = errors.New("lobby code is required")
	ErrCodeLength   = errors.New("lobby code must be 6 characters")
	ErrCodeInvalid  = errors.New("lobby code may only contain letters and digits")

	ErrAnswerRequired  = errors.New("answer is required")
	ErrAnswerTooLong   = errors.New("answer is too long")
	ErrAnswerCorrect   = errors.New("answer matches the correct answer")
	ErrAnswerIncorrect = errors.New("answer matches the built-in wrong answer")
)

var (
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)
	codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// NormalizeName trims a player name. Names are ASCII only, so there is
// nothing to compose.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidatePlayerName checks an already normalized name.
func ValidatePlayerName(name string) error {
	switch {
	case name == "":
		return ErrNameRequired
	case utf8.RuneCountInString(name) > MaxNameLength:
		return ErrNameTooLong
	case !namePattern.MatchString(name):
		return ErrNameInvalid
	}
	return nil
}

// ValidateLobbyCode checks an already normalized code.
func ValidateLobbyCode(code string) error {
	switch {
	case code == "":
		return ErrCodeRequired
	case len(code) != LobbyCodeLength:
		return ErrCodeLength
	case !codePattern.MatchString(code):
		return ErrCodeInvalid
	}
	return nil
}

// ValidateAnswer checks a trimmed answer. With a round it also rejects the
// round's own answers, compared case-insensitively.
func ValidateAnswer(answer string, round *game.Round) error {
	switch {
	case answer == "":
		return ErrAnswerRequired
	case utf8.RuneCountInString(answer) > MaxAnswerLength:
		return ErrAnswerTooLong
	}
	if round == nil {
		return nil
	}
	fold := cases.Fold()
	got := fold.String(norm.NFC.String(answer))
	if round.CorrectAnswer != "" && got == fold.String(norm.NFC.String(round.CorrectAnswer)) {
		return ErrAnswerCorrect
	}
	if round.IncorrectAnswer != "" && got == fold.String(norm.NFC.String(round.IncorrectAnswer)) {
		return ErrAnswerIncorrect
	}
	return nil
}
