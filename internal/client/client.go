// Package client wires the runtime config, transport, projector and session
// store into one object that front-ends drive with intents.
package client

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/game"
	"github.com/DoyleJ11/bull-client/internal/projector"
	"github.com/DoyleJ11/bull-client/internal/protocol"
	"github.com/DoyleJ11/bull-client/internal/runtimeconfig"
	"github.com/DoyleJ11/bull-client/internal/session"
	"github.com/DoyleJ11/bull-client/internal/transport"
)

type Options struct {
	Transport   transport.Options
	HistorySize int
	// Closers are closed after the transport, e.g. a session database.
	Closers []io.Closer
}

type Client struct {
	log      *zap.Logger
	config   *runtimeconfig.Loader
	sessions *session.Store
	tr       *transport.Transport
	proj     *projector.Projector
	closers  []io.Closer

	mu        sync.Mutex
	stopState func()
	closed    bool
}

func New(config *runtimeconfig.Loader, sessions *session.Store, log *zap.Logger, opts Options) *Client {
	return &Client{
		log:      log,
		config:   config,
		sessions: sessions,
		tr:       transport.New(config, opts.Transport, log.Named("transport")),
		proj: projector.New(projector.Options{
			HistorySize: opts.HistorySize,
			Sessions:    sessions,
		}, log.Named("projector")),
		closers: opts.Closers,
	}
}

// Start hooks the projector to connection changes and connects. The
// projector subscribes each time the link comes up and lets go when it drops.
// A link that comes back while a lobby is loaded rejoins it as the saved
// player.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.stopState == nil && !c.closed {
		c.stopState = c.tr.OnStateChange(func(st transport.ConnectionState) {
			c.proj.SetConnected(st.Connected)
			if st.Connected {
				c.proj.Attach(c.tr)
				if c.proj.Snapshot().Lobby != nil && c.ResumeSavedSession() {
					c.log.Info("rejoining lobby after reconnect", zap.String("conn_id", st.ConnID))
				}
			} else {
				c.proj.Detach()
			}
		})
	}
	c.mu.Unlock()

	c.tr.Connect(ctx)
}

func (c *Client) Connect(ctx context.Context) { c.tr.Connect(ctx) }
func (c *Client) Disconnect()                 { c.tr.Disconnect() }
func (c *Client) Reconnect()                  { c.tr.Reconnect() }

func (c *Client) ConnectionState() transport.ConnectionState { return c.tr.State() }

func (c *Client) Snapshot() projector.Snapshot { return c.proj.Snapshot() }

func (c *Client) Watch(buffer int) (<-chan projector.Snapshot, func()) { return c.proj.Watch(buffer) }

func (c *Client) Events() []projector.LogEntry { return c.proj.Events() }

// RuntimeConfig returns the resolved runtime config, loading it if needed.
func (c *Client) RuntimeConfig(ctx context.Context) runtimeconfig.Config { return c.config.Load(ctx) }

func (c *Client) send(in protocol.Intent) {
	c.log.Debug("intent", zap.String("event", in.Name()))
	c.tr.Send(in.Name(), in)
}

func (c *Client) CreateLobby(playerName string) error {
	name := NormalizeName(playerName)
	if err := ValidatePlayerName(name); err != nil {
		return err
	}
	c.proj.SetPlayerName(name)
	c.send(protocol.CreateLobby{PlayerName: name})
	return nil
}

func (c *Client) JoinLobby(playerName, code string) error {
	name, code := NormalizeName(playerName), NormalizeCode(code)
	if err := multierr.Combine(ValidatePlayerName(name), ValidateLobbyCode(code)); err != nil {
		return err
	}
	c.proj.SetPlayerName(name)
	c.send(protocol.JoinLobby{Code: code, PlayerName: name})
	return nil
}

// LeaveLobby tells the server, forgets the saved session and goes home.
func (c *Client) LeaveLobby() {
	c.send(protocol.LeaveLobby{})
	c.sessions.Clear()
	c.proj.Reset()
}

func (c *Client) SelectTeam(team game.Team) error {
	if !team.Valid() {
		return game.ErrInvalidTeam
	}
	c.send(protocol.SelectTeam{Team: team})
	return nil
}

// ToggleReady flips the local ready flag right away; the next lobby update
// from the server replaces it.
func (c *Client) ToggleReady() {
	c.proj.MarkReady(!c.proj.Snapshot().IsReady())
	c.send(protocol.ReadyToggle{})
}

func (c *Client) StartGame(settings game.GameSettings) {
	c.send(protocol.StartGame{GameSettings: settings})
}

func (c *Client) SubmitAnswer(answer string) error {
	answer = strings.TrimSpace(answer)
	s := c.proj.Snapshot()
	if err := ValidateAnswer(answer, s.Round.Current); err != nil {
		return err
	}
	c.proj.MarkAnswer(answer)
	c.send(protocol.SubmitAnswer{Answer: answer})
	return nil
}

func (c *Client) SubmitVote(optionID string) {
	c.proj.MarkVote(optionID)
	c.send(protocol.SubmitVote{OptionID: optionID})
}

func (c *Client) NextPhase()   { c.send(protocol.NextPhase{}) }
func (c *Client) RestartGame() { c.send(protocol.ResetGame{}) }
func (c *Client) ClearError()  { c.proj.ClearError() }

func (c *Client) ReconnectByName(playerName, code string) error {
	name, code := NormalizeName(playerName), NormalizeCode(code)
	if err := multierr.Combine(ValidatePlayerName(name), ValidateLobbyCode(code)); err != nil {
		return err
	}
	c.proj.SetPlayerName(name)
	c.send(protocol.ReconnectByName{PlayerName: name, LobbyCode: code})
	return nil
}

func (c *Client) ReconnectByID(playerID, code string) {
	c.send(protocol.ReconnectByID{PlayerID: playerID, LobbyCode: NormalizeCode(code)})
}

func (c *Client) SavedSession() (session.Record, bool) { return c.sessions.Load() }

func (c *Client) ClearSavedSession() { c.sessions.Clear() }

// NeedsReconnect reports a live saved session that the client is not
// currently using: no lobby loaded after a restart, or a lobby loaded but the
// connection lost.
func (c *Client) NeedsReconnect() bool {
	s := c.proj.Snapshot()
	if s.Lobby != nil && s.IsConnected {
		return false
	}
	_, ok := c.sessions.Load()
	return ok
}

// ResumeSavedSession asks the server to put this player back into the saved
// lobby. It reports false when there is nothing to resume.
func (c *Client) ResumeSavedSession() bool {
	rec, ok := c.sessions.Load()
	if !ok {
		return false
	}
	c.proj.SetPlayerName(rec.PlayerName)
	c.send(protocol.ReconnectByName{PlayerName: rec.PlayerName, LobbyCode: rec.LobbyCode})
	return true
}

// Close disconnects and releases everything the client owns. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stop := c.stopState
	c.mu.Unlock()

	err := c.tr.Close()
	if stop != nil {
		stop()
	}
	c.proj.Close()
	for _, cl := range c.closers {
		err = multierr.Append(err, cl.Close())
	}
	if err != nil {
		c.log.Warn("client closed with errors", zap.Error(err))
	}
	return err
}
