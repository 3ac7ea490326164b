package game

import "slices"

// Everything in this file is computed from server-pushed state on read.
// Nothing here is cached or sent back to the server.

func (l *Lobby) Player(id string) (Player, bool) {
	if l == nil || id == "" {
		return Player{}, false
	}
	i := slices.IndexFunc(l.Players, func(p Player) bool { return p.ID == id })
	if i < 0 {
		return Player{}, false
	}
	return l.Players[i], true
}

func (l *Lobby) IsHost(playerID string) bool {
	return l != nil && playerID != "" && l.HostID == playerID
}

// CanStart mirrors the host's start button: lobby still waiting, at least one
// active player per team and every active player ready. Spectators and the
// host's own ready flag do not count. The server decides for real.
func (l *Lobby) CanStart(playerID string) bool {
	if l == nil || !l.IsHost(playerID) {
		return false
	}
	if l.Status != LobbyWaiting {
		return false
	}
	for _, team := range []Team{TeamBlue, TeamRed} {
		c := l.Counts(team)
		if host, ok := l.Player(playerID); ok && host.Team == team && host.Role == RoleActive && !host.IsReady {
			c.ActiveReady++
		}
		if c.Active == 0 || c.ActiveReady != c.Active {
			return false
		}
	}
	return true
}

type TeamCounts struct {
	Active      int
	Spectators  int
	ActiveReady int
}

func (l *Lobby) Counts(team Team) TeamCounts {
	var c TeamCounts
	if l == nil {
		return c
	}
	for _, p := range l.Teams.Members(team) {
		switch p.Role {
		case RoleActive:
			c.Active++
			if p.IsReady {
				c.ActiveReady++
			}
		case RoleSpectator:
			c.Spectators++
		}
	}
	return c
}

// TeamsConsistent reports whether every team member is listed exactly once
// in Players and nobody sits on both teams.
func (l *Lobby) TeamsConsistent() bool {
	if l == nil {
		return true
	}
	seen := make(map[string]int, len(l.Players))
	for _, p := range l.Players {
		seen[p.ID]++
	}
	onTeam := map[string]bool{}
	for _, team := range []Team{TeamBlue, TeamRed} {
		for _, p := range l.Teams.Members(team) {
			if seen[p.ID] != 1 || onTeam[p.ID] {
				return false
			}
			onTeam[p.ID] = true
		}
	}
	return true
}

func (g *GameState) IsActive() bool {
	if g == nil {
		return false
	}
	switch g.Phase {
	case "", PhaseWaiting, PhaseFinished:
		return false
	default:
		return true
	}
}

func (r *Round) IsSelectedWriter(playerID string) bool {
	if r == nil || playerID == "" {
		return false
	}
	sp := r.SelectedPlayers
	return (sp.Blue != nil && sp.Blue.ID == playerID) || (sp.Red != nil && sp.Red.ID == playerID)
}

func (r *Round) HasAnswered(playerID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.PlayerAnswers[playerID]
	return ok
}

func (r *Round) HasVoted(playerID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Votes[playerID]
	return ok
}
