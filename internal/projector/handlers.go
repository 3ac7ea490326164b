package projector

import (
	"github.com/DoyleJ11/bull-client/internal/game"
	"github.com/DoyleJ11/bull-client/internal/protocol"
)

// fold turns the current snapshot and one event into the next snapshot.
// A fold may replace a top-level field, shallow-merge the lobby or game
// state, or replace the transient round data. Nothing else.
type fold func(Snapshot, protocol.Event) Snapshot

func on[E protocol.Event](fn func(Snapshot, E) Snapshot) fold {
	return func(s Snapshot, ev protocol.Event) Snapshot {
		e, ok := ev.(E)
		if !ok {
			return s
		}
		return fn(s, e)
	}
}

// folds has an entry for every inbound event. A nil fold means the event is
// only recorded in the debug log.
var folds = map[string]fold{
	protocol.EventLobbyCreated: on(func(s Snapshot, e *protocol.LobbyCreated) Snapshot {
		return enterLobby(s, e.Lobby, e.PlayerID)
	}),
	protocol.EventLobbyJoined: on(func(s Snapshot, e *protocol.LobbyJoined) Snapshot {
		return enterLobby(s, e.Lobby, e.PlayerID)
	}),
	protocol.EventLobbyUpdated: on(func(s Snapshot, e *protocol.LobbyUpdated) Snapshot {
		s.Lobby = e.Lobby
		return s
	}),
	protocol.EventTeamUpdated: on(func(s Snapshot, e *protocol.TeamUpdated) Snapshot {
		if s.Lobby == nil {
			return s
		}
		l := *s.Lobby
		l.Teams = *e.Teams
		s.Lobby = &l
		return s
	}),
	protocol.EventGameStarted: on(func(s Snapshot, e *protocol.GameStarted) Snapshot {
		s.CurrentPage = PageGame
		s.GameState = e.GameState
		return s
	}),
	protocol.EventGameStateUpdated: on(func(s Snapshot, e *protocol.GameStateUpdated) Snapshot {
		s.GameState = e.GameState
		return s
	}),
	protocol.EventRoundStarted: on(func(s Snapshot, e *protocol.RoundStarted) Snapshot {
		s.Round = RoundData{TimeRemaining: e.TimeRemaining, Current: e.Round}
		return s
	}),
	protocol.EventWritingPhase: on(func(s Snapshot, e *protocol.WritingPhase) Snapshot {
		s.Round.TimeRemaining = e.TimeRemaining
		return s
	}),
	protocol.EventVotingPhase: on(func(s Snapshot, e *protocol.VotingPhase) Snapshot {
		s.Round.Options = e.Options
		s.Round.TimeRemaining = e.TimeRemaining
		return s
	}),
	protocol.EventRoundResults: on(func(s Snapshot, e *protocol.RoundResults) Snapshot {
		s.Round.LastResults = e.Results
		return s
	}),
	protocol.EventTimeUpdate: on(func(s Snapshot, e *protocol.TimeUpdate) Snapshot {
		s.Round.TimeRemaining = e.TimeRemaining
		return s
	}),
	protocol.EventGameFinished: on(func(s Snapshot, e *protocol.GameFinished) Snapshot {
		var gs game.GameState
		if s.GameState != nil {
			gs = *s.GameState
		}
		gs.Phase = game.PhaseFinished
		gs.Winner = e.Winner
		gs.Scores = *e.FinalScores
		s.GameState = &gs
		return s
	}),
	protocol.EventError: on(func(s Snapshot, e *protocol.ServerError) Snapshot {
		s.Error = e.Message
		return s
	}),
	protocol.EventValidationError: on(func(s Snapshot, e *protocol.ValidationError) Snapshot {
		if e.Field == "" {
			s.Error = e.Message
		} else {
			s.Error = e.Field + ": " + e.Message
		}
		return s
	}),
	protocol.EventReconnected: on(func(s Snapshot, e *protocol.Reconnected) Snapshot {
		s.CurrentPage = PageLobby
		if e.GameState != nil || e.Lobby.Status == game.LobbyPlaying {
			s.CurrentPage = PageGame
		}
		s.Lobby = e.Lobby
		s.GameState = e.GameState
		if e.PlayerID != "" {
			s.PlayerID = e.PlayerID
		}
		s.Error = ""
		return s
	}),

	protocol.EventPlayerJoined:      nil,
	protocol.EventPlayerLeft:        nil,
	protocol.EventPlayerReconnected: nil,
}

func enterLobby(s Snapshot, l *game.Lobby, playerID string) Snapshot {
	s.CurrentPage = PageLobby
	s.Lobby = l
	s.PlayerID = playerID
	s.Error = ""
	return s
}

var allPending = []PendingKind{PendingReady, PendingAnswer, PendingVote}

// reconciles lists which optimistic intents an event confirms or rejects.
var reconciles = map[string][]PendingKind{
	protocol.EventLobbyCreated:     allPending,
	protocol.EventLobbyJoined:      allPending,
	protocol.EventReconnected:      allPending,
	protocol.EventGameStarted:      allPending,
	protocol.EventError:            allPending,
	protocol.EventValidationError:  allPending,
	protocol.EventLobbyUpdated:     {PendingReady},
	protocol.EventTeamUpdated:      {PendingReady},
	protocol.EventRoundStarted:     {PendingAnswer, PendingVote},
	protocol.EventVotingPhase:      {PendingAnswer},
	protocol.EventRoundResults:     {PendingAnswer, PendingVote},
	protocol.EventGameStateUpdated: {PendingAnswer, PendingVote},
	protocol.EventGameFinished:     {PendingAnswer, PendingVote},
}

func (p Pending) clear(kind PendingKind) Pending {
	switch kind {
	case PendingReady:
		p.Ready = Optimistic[bool]{}
	case PendingAnswer:
		p.Answer = Optimistic[string]{}
	case PendingVote:
		p.Vote = Optimistic[string]{}
	}
	return p
}
