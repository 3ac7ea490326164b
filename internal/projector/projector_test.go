package projector

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/game"
	"github.com/DoyleJ11/bull-client/internal/protocol"
)

// fakeSource hands subscriptions straight to emit, like the transport's
// reader goroutine does.
type fakeSource struct {
	mu   sync.Mutex
	subs map[string][]func(json.RawMessage)
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[string][]func(json.RawMessage){}}
}

func (f *fakeSource) Subscribe(event string, fn func(json.RawMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[event] = append(f.subs[event], fn)
	i := len(f.subs[event]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[event][i] = nil
	}
}

func (f *fakeSource) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fn := range f.subs[event] {
		if fn != nil {
			n++
		}
	}
	return n
}

func (f *fakeSource) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	f.mu.Lock()
	fns := append([]func(json.RawMessage){}, f.subs[event]...)
	f.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(data)
		}
	}
}

type savedSession struct{ name, code, id string }

type fakeSaver struct{ saved []savedSession }

func (f *fakeSaver) Save(name, code, id string) {
	f.saved = append(f.saved, savedSession{name, code, id})
}

func sampleLobby(code string) *game.Lobby {
	ana := game.Player{ID: "p1", Name: "Ana", Team: game.TeamBlue, Role: game.RoleActive, IsHost: true}
	ben := game.Player{ID: "p2", Name: "Ben", Team: game.TeamRed, Role: game.RoleActive}
	return &game.Lobby{
		Code:     code,
		HostID:   "p1",
		Status:   game.LobbyWaiting,
		Players:  []game.Player{ana, ben},
		Teams:    game.Teams{Blue: []game.Player{ana}, Red: []game.Player{ben}},
		Settings: game.LobbySettings{MaxRounds: 5},
	}
}

func newAttached(t *testing.T, opts Options) (*Projector, *fakeSource) {
	t.Helper()
	p := New(opts, zap.NewNop())
	src := newFakeSource()
	p.Attach(src)
	t.Cleanup(p.Close)
	return p, src
}

func TestFolds_CoverEveryInboundEvent(t *testing.T) {
	for _, name := range protocol.InboundEvents() {
		_, ok := folds[name]
		assert.True(t, ok, "no handler for %s", name)
	}
	assert.Len(t, folds, len(protocol.InboundEvents()))
}

func TestLobbyCreated_EntersLobbyAndSavesSession(t *testing.T) {
	saver := &fakeSaver{}
	p, src := newAttached(t, Options{Sessions: saver})
	p.SetPlayerName("Ana")

	src.emit(t, protocol.EventLobbyCreated, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p1"})

	s := p.Snapshot()
	assert.Equal(t, PageLobby, s.CurrentPage)
	require.NotNil(t, s.Lobby)
	assert.Equal(t, "ABC123", s.Lobby.Code)
	assert.Equal(t, "p1", s.PlayerID)
	assert.True(t, s.IsHost())
	assert.Equal(t, []savedSession{{"Ana", "ABC123", "p1"}}, saver.saved)
}

func TestLobbyJoined_WithoutNameDoesNotSave(t *testing.T) {
	saver := &fakeSaver{}
	p, src := newAttached(t, Options{Sessions: saver})

	src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p2"})

	assert.Equal(t, PageLobby, p.Snapshot().CurrentPage)
	assert.Empty(t, saver.saved)
}

func TestRoundResultsThenGameFinished(t *testing.T) {
	p, src := newAttached(t, Options{})

	src.emit(t, protocol.EventGameStarted, map[string]any{"gameState": game.GameState{
		Phase: game.PhaseWriting, CurrentRound: 1, TotalRounds: 2,
	}})
	src.emit(t, protocol.EventRoundResults, map[string]any{"results": map[string]any{
		"roundNumber": 2, "newScores": map[string]int{"blue": 150, "red": 100},
	}})
	src.emit(t, protocol.EventGameFinished, map[string]any{
		"winner": "blue", "finalScores": map[string]int{"blue": 250, "red": 100},
	})

	s := p.Snapshot()
	assert.Equal(t, PageGame, s.CurrentPage)
	require.NotNil(t, s.GameState)
	assert.Equal(t, game.PhaseFinished, s.GameState.Phase)
	assert.Equal(t, game.WinnerBlue, s.GameState.Winner)
	assert.Equal(t, game.Scores{Blue: 250, Red: 100}, s.GameState.Scores)
	assert.Equal(t, 2, s.GameState.TotalRounds, "other game state fields survive the merge")
	require.NotNil(t, s.Round.LastResults)
	assert.Equal(t, 150, s.Round.LastResults.NewScores.Blue)
	assert.False(t, s.IsGameActive())
}

func TestTeamUpdated_MergesWithoutMutatingPrevious(t *testing.T) {
	p, src := newAttached(t, Options{})

	src.emit(t, protocol.EventTeamUpdated, map[string]any{"teams": game.Teams{}})
	assert.Nil(t, p.Snapshot().Lobby, "ignored without a lobby")

	src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p2"})
	before := p.Snapshot()

	lobby := sampleLobby("ABC123")
	swapped := game.Teams{Blue: lobby.Teams.Red, Red: lobby.Teams.Blue}
	src.emit(t, protocol.EventTeamUpdated, map[string]any{"teams": swapped})

	after := p.Snapshot()
	assert.Equal(t, "p2", after.Lobby.Teams.Blue[0].ID)
	assert.Equal(t, "p1", before.Lobby.Teams.Blue[0].ID, "published snapshot must not change")
	assert.NotSame(t, before.Lobby, after.Lobby)
	assert.Equal(t, before.Lobby.Players, after.Lobby.Players)
}

func TestTransientRoundData(t *testing.T) {
	p, src := newAttached(t, Options{})

	src.emit(t, protocol.EventRoundStarted, map[string]any{
		"round": game.Round{Number: 1, Question: "Capital of France?"}, "timeRemaining": 60,
	})
	src.emit(t, protocol.EventWritingPhase, map[string]any{"timeRemaining": 45})
	src.emit(t, protocol.EventTimeUpdate, map[string]any{"timeRemaining": 44})
	assert.Equal(t, 44, p.Snapshot().Round.TimeRemaining)

	src.emit(t, protocol.EventVotingPhase, map[string]any{
		"options":       []game.Option{{ID: "o1", Text: "Paris", Origin: game.OptionOrigin{Type: game.OptionCorrect}}},
		"timeRemaining": 30,
	})
	s := p.Snapshot()
	assert.Equal(t, 30, s.Round.TimeRemaining)
	require.Len(t, s.Round.Options, 1)
	require.NotNil(t, s.Round.Current)
	assert.Equal(t, "Capital of France?", s.Round.Current.Question)

	src.emit(t, protocol.EventRoundStarted, map[string]any{"round": game.Round{Number: 2}, "timeRemaining": 60})
	assert.Empty(t, p.Snapshot().Round.Options, "new round starts clean")
}

func TestErrors(t *testing.T) {
	p, src := newAttached(t, Options{})
	src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p2"})

	src.emit(t, protocol.EventValidationError, map[string]any{"field": "answer", "message": "too long"})
	s := p.Snapshot()
	assert.Equal(t, "answer: too long", s.Error)
	assert.NotNil(t, s.Lobby, "errors do not clear other state")

	src.emit(t, protocol.EventError, map[string]any{"message": "Lobby full", "code": "LOBBY_FULL"})
	assert.Equal(t, "Lobby full", p.Snapshot().Error)

	p.ClearError()
	assert.Empty(t, p.Snapshot().Error)
}

func TestReconnected(t *testing.T) {
	cases := []struct {
		name     string
		payload  map[string]any
		wantPage Page
		wantID   string
	}{
		{
			name:     "back to lobby, id kept",
			payload:  map[string]any{"lobby": sampleLobby("ABC123")},
			wantPage: PageLobby,
			wantID:   "old",
		},
		{
			name: "back into a running game",
			payload: map[string]any{
				"lobby": sampleLobby("ABC123"), "playerId": "p1",
				"gameState": game.GameState{Phase: game.PhaseVoting},
			},
			wantPage: PageGame,
			wantID:   "p1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saver := &fakeSaver{}
			p, src := newAttached(t, Options{Sessions: saver})
			p.SetPlayerName("Ana")
			src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("OLD000"), "playerId": "old"})
			src.emit(t, protocol.EventError, map[string]any{"message": "connection lost"})

			src.emit(t, protocol.EventReconnected, tc.payload)

			s := p.Snapshot()
			assert.Equal(t, tc.wantPage, s.CurrentPage)
			assert.Equal(t, tc.wantID, s.PlayerID)
			assert.Equal(t, "ABC123", s.Lobby.Code)
			assert.Empty(t, s.Error)
			require.Len(t, saver.saved, 2)
			assert.Equal(t, savedSession{"Ana", "ABC123", tc.wantID}, saver.saved[1])
		})
	}
}

func TestLogOnlyEvents(t *testing.T) {
	p, src := newAttached(t, Options{})
	v := p.Snapshot().Version

	src.emit(t, protocol.EventPlayerJoined, map[string]any{"player": game.Player{ID: "p3", Name: "Cy"}})
	src.emit(t, protocol.EventPlayerLeft, map[string]any{"playerId": "p3"})
	src.emit(t, protocol.EventPlayerReconnected, map[string]any{"playerName": "Cy"})

	assert.Equal(t, v, p.Snapshot().Version)
	events := p.Events()
	require.Len(t, events, 3)
	assert.Equal(t, protocol.EventPlayerReconnected, events[2].Event)
	assert.NotEmpty(t, events[0].ID)
}

func TestQuarantine(t *testing.T) {
	p, src := newAttached(t, Options{})
	before := p.Snapshot()

	src.emit(t, protocol.EventLobbyCreated, map[string]any{"lobby": map[string]any{"hostId": "p1"}})
	src.emit(t, protocol.EventGameStarted, map[string]any{"gameState": "soon"})

	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, 2, p.Quarantined())
	events := p.Events()
	require.Len(t, events, 2)
	assert.True(t, events[0].Quarantined)
	assert.Contains(t, events[0].Error, "lobby.code")
	assert.NotEmpty(t, events[1].Data)
}

func TestHistoryIsBounded(t *testing.T) {
	p, src := newAttached(t, Options{HistorySize: 5})
	for i := range 12 {
		src.emit(t, protocol.EventTimeUpdate, map[string]any{"timeRemaining": i})
	}

	events := p.Events()
	require.Len(t, events, 5)
	assert.Equal(t, uint64(12), events[4].Version)
	assert.Equal(t, uint64(8), events[0].Version)
}

func TestAttach_IsIdempotentAndDetachReleases(t *testing.T) {
	p := New(Options{}, zap.NewNop())
	src := newFakeSource()

	p.Attach(src)
	p.Attach(src)
	assert.True(t, p.Attached())
	assert.Equal(t, 1, src.count(protocol.EventLobbyUpdated))

	p.Detach()
	assert.False(t, p.Attached())
	assert.Equal(t, 0, src.count(protocol.EventLobbyUpdated))

	src.emit(t, protocol.EventError, map[string]any{"message": "ignored"})
	assert.Empty(t, p.Snapshot().Error)

	p.Attach(src)
	assert.Equal(t, 1, src.count(protocol.EventLobbyUpdated))
	p.Close()
}

func TestPendingOverlay(t *testing.T) {
	p, src := newAttached(t, Options{})
	src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p2"})

	p.MarkReady(true)
	s := p.Snapshot()
	assert.True(t, s.Pending.Ready.Optimistic)
	assert.True(t, s.IsReady(), "optimistic value wins until the server answers")

	src.emit(t, protocol.EventLobbyUpdated, map[string]any{"lobby": sampleLobby("ABC123")})
	s = p.Snapshot()
	assert.False(t, s.Pending.Ready.Optimistic)
	assert.False(t, s.IsReady(), "server says p2 is not ready")

	p.MarkAnswer("Lyon")
	p.MarkVote("o1")
	src.emit(t, protocol.EventVotingPhase, map[string]any{"options": []game.Option{{ID: "o1"}}})
	s = p.Snapshot()
	assert.False(t, s.Pending.Answer.Optimistic)
	assert.True(t, s.Pending.Vote.Optimistic)
	assert.Equal(t, "o1", s.Pending.Vote.Value)

	src.emit(t, protocol.EventRoundResults, map[string]any{"results": map[string]any{"roundNumber": 1}})
	assert.False(t, p.Snapshot().Pending.Vote.Optimistic)
}

func TestReset_KeepsConnection(t *testing.T) {
	p, src := newAttached(t, Options{})
	p.SetConnected(true)
	p.SetPlayerName("Ana")
	src.emit(t, protocol.EventLobbyJoined, map[string]any{"lobby": sampleLobby("ABC123"), "playerId": "p2"})

	p.Reset()

	s := p.Snapshot()
	assert.Equal(t, PageHome, s.CurrentPage)
	assert.Nil(t, s.Lobby)
	assert.Empty(t, s.PlayerName)
	assert.True(t, s.IsConnected)
}

func TestWatch_LatestWins(t *testing.T) {
	p, src := newAttached(t, Options{})
	ch, stop := p.Watch(1)
	defer stop()

	for i := range 3 {
		src.emit(t, protocol.EventTimeUpdate, map[string]any{"timeRemaining": i})
	}

	select {
	case s := <-ch:
		assert.Equal(t, 2, s.Round.TimeRemaining)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}

	stop()
	stop()
	_, open := <-ch
	assert.False(t, open)
}

// Feed random lobby traffic that respects the server invariant and check the
// projected lobby never breaks it.
func TestTeamsStayConsistent(t *testing.T) {
	p, src := newAttached(t, Options{})
	rng := rand.New(rand.NewSource(7))

	var players []game.Player
	for step := range 300 {
		switch rng.Intn(3) {
		case 0:
			players = append(players, game.Player{ID: fmt.Sprintf("p%d", step), Name: "x"})
		case 1:
			if len(players) > 0 {
				i := rng.Intn(len(players))
				players = append(players[:i:i], players[i+1:]...)
			}
		}
		var teams game.Teams
		for i := range players {
			switch rng.Intn(3) {
			case 0:
				players[i].Team = game.TeamBlue
				teams.Blue = append(teams.Blue, players[i])
			case 1:
				players[i].Team = game.TeamRed
				teams.Red = append(teams.Red, players[i])
			default:
				players[i].Team = ""
			}
		}

		lobby := game.Lobby{Code: "ABC123", Players: append([]game.Player(nil), players...), Teams: teams}
		if rng.Intn(2) == 0 {
			src.emit(t, protocol.EventLobbyUpdated, map[string]any{"lobby": lobby})
		} else {
			// teams only ever reference players already present
			src.emit(t, protocol.EventLobbyUpdated, map[string]any{"lobby": lobby})
			src.emit(t, protocol.EventTeamUpdated, map[string]any{"teams": teams})
		}
		require.True(t, p.Snapshot().Lobby.TeamsConsistent(), "step %d", step)
	}
}
