package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DoyleJ11/bull-client/internal/client"
	"github.com/DoyleJ11/bull-client/internal/game"
	"github.com/DoyleJ11/bull-client/internal/projector"
)

var errUsage = errors.New("usage")

type command struct {
	verb string
	args []string
}

// verbs lists each command with its arity. Free-text commands take the rest of
// the line as their last argument.
var verbs = map[string]struct {
	minArgs  int
	usage    string
	restText bool
}{
	"create":    {1, "create NAME", true},
	"join":      {2, "join CODE NAME", true},
	"team":      {1, "team blue|red", false},
	"ready":     {0, "ready", false},
	"start":     {0, "start [ROUNDS]", false},
	"answer":    {1, "answer TEXT", true},
	"vote":      {1, "vote OPTION_ID", false},
	"next":      {0, "next", false},
	"restart":   {0, "restart", false},
	"leave":     {0, "leave", false},
	"resume":    {0, "resume", false},
	"forget":    {0, "forget", false},
	"reconnect": {0, "reconnect", false},
	"state":     {0, "state", false},
	"help":      {0, "help", false},
	"quit":      {0, "quit", false},
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	verb := strings.ToLower(fields[0])
	v, ok := verbs[verb]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q, try help", fields[0])
	}
	args := fields[1:]
	if len(args) < v.minArgs {
		return command{}, fmt.Errorf("%w: %s", errUsage, v.usage)
	}
	if v.restText && len(args) > v.minArgs {
		keep := v.minArgs - 1
		args = append(args[:keep:keep], strings.Join(args[keep:], " "))
	}
	return command{verb: verb, args: args}, nil
}

func usage(w io.Writer) {
	names := []string{"create", "join", "team", "ready", "start", "answer", "vote", "next",
		"restart", "leave", "resume", "forget", "reconnect", "state", "quit"}
	for _, n := range names {
		fmt.Fprintln(w, "  "+verbs[n].usage)
	}
}

// execute runs one command. It reports true when the user asked to quit.
func execute(c *client.Client, cmd command, out io.Writer) (bool, error) {
	switch cmd.verb {
	case "":
	case "create":
		return false, c.CreateLobby(cmd.args[0])
	case "join":
		return false, c.JoinLobby(cmd.args[1], cmd.args[0])
	case "team":
		return false, c.SelectTeam(game.Team(strings.ToLower(cmd.args[0])))
	case "ready":
		c.ToggleReady()
	case "start":
		var settings game.GameSettings
		if len(cmd.args) > 0 {
			n, err := strconv.Atoi(cmd.args[0])
			if err != nil || n <= 0 {
				return false, fmt.Errorf("%w: start [ROUNDS]", errUsage)
			}
			settings.MaxRounds = n
		}
		c.StartGame(settings)
	case "answer":
		return false, c.SubmitAnswer(cmd.args[0])
	case "vote":
		c.SubmitVote(cmd.args[0])
	case "next":
		c.NextPhase()
	case "restart":
		c.RestartGame()
	case "leave":
		c.LeaveLobby()
	case "resume":
		if !c.ResumeSavedSession() {
			fmt.Fprintln(out, "no saved session")
		}
	case "forget":
		c.ClearSavedSession()
	case "reconnect":
		c.Reconnect()
	case "state":
		printState(out, c.Snapshot())
	case "help":
		usage(out)
	case "quit":
		return true, nil
	}
	return false, nil
}

// summary is the one line printed for every snapshot.
func summary(s projector.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[v%d] %s", s.Version, s.CurrentPage)
	if !s.IsConnected {
		b.WriteString(" (offline)")
	}
	if s.Lobby != nil {
		fmt.Fprintf(&b, " lobby=%s players=%d", s.Lobby.Code, len(s.Lobby.Players))
		if s.IsHost() {
			b.WriteString(" host")
		}
	}
	if s.GameState != nil {
		gs := s.GameState
		fmt.Fprintf(&b, " %s round=%d/%d blue=%d red=%d", gs.Phase, gs.CurrentRound, gs.TotalRounds, gs.Scores.Blue, gs.Scores.Red)
		if gs.Winner != "" {
			fmt.Fprintf(&b, " winner=%s", gs.Winner)
		}
	}
	if s.IsGameActive() && s.Round.TimeRemaining > 0 {
		fmt.Fprintf(&b, " %ds", s.Round.TimeRemaining)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, " error=%q", s.Error)
	}
	return b.String()
}

func printState(w io.Writer, s projector.Snapshot) {
	fmt.Fprintln(w, summary(s))
	if s.Lobby != nil {
		for _, team := range []game.Team{game.TeamBlue, game.TeamRed} {
			counts := s.Lobby.Counts(team)
			fmt.Fprintf(w, "  %s: %d active (%d ready), %d watching\n", team, counts.Active, counts.ActiveReady, counts.Spectators)
		}
	}
	if r := s.Round.Current; r != nil {
		fmt.Fprintf(w, "  Q%d: %s\n", r.Number, r.Question)
	}
	for _, o := range s.Round.Options {
		fmt.Fprintf(w, "  [%s] %s\n", o.ID, o.Text)
	}
	if res := s.Round.LastResults; res != nil {
		fmt.Fprintf(w, "  answer was %q, now blue=%d red=%d\n", res.CorrectAnswer, res.NewScores.Blue, res.NewScores.Red)
	}
}
