// Package projector folds server events into an immutable Snapshot that
// views read. It is the only writer of that Snapshot.
package projector

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/protocol"
)

const DefaultHistorySize = 100

// Source delivers raw inbound payloads by event name.
type Source interface {
	Subscribe(event string, fn func(data json.RawMessage)) (unsubscribe func())
}

type SessionSaver interface {
	Save(playerName, lobbyCode, playerID string)
}

type LogEntry struct {
	ID          string          `json:"id"`
	At          time.Time       `json:"at"`
	Event       string          `json:"event"`
	Version     uint64          `json:"version"`
	Quarantined bool            `json:"quarantined,omitempty"`
	Error       string          `json:"error,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type Options struct {
	HistorySize int
	Sessions    SessionSaver
	Now         func() time.Time
}

type Projector struct {
	log         *zap.Logger
	sessions    SessionSaver
	historySize int
	now         func() time.Time

	mu          sync.Mutex
	snap        Snapshot
	history     []LogEntry
	quarantined int
	unsubs      []func()
	watchers    map[uint64]chan Snapshot
	nextWatch   uint64
}

func New(opts Options, log *zap.Logger) *Projector {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Projector{
		log:         log,
		sessions:    opts.Sessions,
		historySize: opts.HistorySize,
		now:         opts.Now,
		snap:        initialSnapshot(),
		watchers:    make(map[uint64]chan Snapshot),
	}
}

func (p *Projector) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Attach subscribes to every inbound event on src. Calling it again while
// attached does nothing, so reconnects never double-register.
func (p *Projector) Attach(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubs != nil {
		return
	}
	p.unsubs = make([]func(), 0, len(folds))
	for name := range folds {
		p.unsubs = append(p.unsubs, src.Subscribe(name, func(data json.RawMessage) {
			p.Apply(name, data)
		}))
	}
	p.log.Debug("projector attached", zap.Int("events", len(p.unsubs)))
}

func (p *Projector) Detach() {
	p.mu.Lock()
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if unsubs != nil {
		p.log.Debug("projector detached")
	}
}

func (p *Projector) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unsubs != nil
}

// Apply decodes and folds one inbound event. Payloads that fail validation
// are quarantined in the debug log and leave the snapshot untouched.
func (p *Projector) Apply(name string, data json.RawMessage) {
	ev, err := protocol.Decode(name, data)
	if err != nil {
		p.quarantine(name, data, err)
		return
	}

	f := folds[name]
	if f == nil {
		p.mu.Lock()
		p.record(LogEntry{Event: name, Version: p.snap.Version})
		p.mu.Unlock()
		p.log.Info("server event", zap.String("event", name), zap.ByteString("data", data))
		return
	}

	p.mu.Lock()
	prev := p.snap
	next := f(prev, ev)
	for _, kind := range reconciles[name] {
		next.Pending = next.Pending.clear(kind)
	}
	next.Version = prev.Version + 1
	p.snap = next
	p.record(LogEntry{Event: name, Version: next.Version})
	p.broadcastLocked(next)
	p.mu.Unlock()

	p.log.Debug("event applied", zap.String("event", name), zap.Uint64("version", next.Version))
	if next.Lobby != nil && !next.Lobby.TeamsConsistent() {
		p.log.Warn("lobby teams out of sync with players", zap.String("lobby", next.Lobby.Code))
	}

	switch name {
	case protocol.EventLobbyCreated, protocol.EventLobbyJoined, protocol.EventReconnected:
		p.saveSession(next)
	}
}

func (p *Projector) saveSession(s Snapshot) {
	if p.sessions == nil || s.Lobby == nil || s.PlayerID == "" {
		return
	}
	if s.PlayerName == "" {
		p.log.Debug("player name unknown, session not saved")
		return
	}
	p.sessions.Save(s.PlayerName, s.Lobby.Code, s.PlayerID)
}

func (p *Projector) quarantine(name string, data json.RawMessage, err error) {
	p.mu.Lock()
	p.quarantined++
	p.record(LogEntry{
		Event:       name,
		Version:     p.snap.Version,
		Quarantined: true,
		Error:       err.Error(),
		Data:        append(json.RawMessage(nil), data...),
	})
	p.mu.Unlock()
	p.log.Warn("quarantined server event", zap.String("event", name), zap.Error(err))
}

// record must be called with mu held.
func (p *Projector) record(e LogEntry) {
	e.ID = uuid.NewString()
	e.At = p.now()
	p.history = append(p.history, e)
	if over := len(p.history) - p.historySize; over > 0 {
		p.history = append([]LogEntry(nil), p.history[over:]...)
	}
}

// Events returns the rolling debug log, oldest first.
func (p *Projector) Events() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogEntry(nil), p.history...)
}

func (p *Projector) Quarantined() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quarantined
}

// update applies a local change, e.g. from a user action.
func (p *Projector) update(fn func(Snapshot) Snapshot) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := fn(p.snap)
	next.Version = p.snap.Version + 1
	p.snap = next
	p.broadcastLocked(next)
	return next
}

func (p *Projector) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap.IsConnected == connected {
		return
	}
	next := p.snap
	next.IsConnected = connected
	next.Version++
	p.snap = next
	p.broadcastLocked(next)
}

func (p *Projector) SetPlayerName(name string) {
	p.update(func(s Snapshot) Snapshot {
		s.PlayerName = name
		return s
	})
}

func (p *Projector) ClearError() {
	p.update(func(s Snapshot) Snapshot {
		s.Error = ""
		return s
	})
}

func (p *Projector) MarkReady(ready bool) {
	p.update(func(s Snapshot) Snapshot {
		s.Pending.Ready = Optimistic[bool]{Value: ready, Optimistic: true}
		return s
	})
}

func (p *Projector) MarkAnswer(answer string) {
	p.update(func(s Snapshot) Snapshot {
		s.Pending.Answer = Optimistic[string]{Value: answer, Optimistic: true}
		return s
	})
}

func (p *Projector) MarkVote(optionID string) {
	p.update(func(s Snapshot) Snapshot {
		s.Pending.Vote = Optimistic[string]{Value: optionID, Optimistic: true}
		return s
	})
}

// Reset returns to the home page. Connection status is kept.
func (p *Projector) Reset() {
	p.update(func(s Snapshot) Snapshot {
		next := initialSnapshot()
		next.IsConnected = s.IsConnected
		return next
	})
}

// Watch delivers new snapshots. A slow reader only misses intermediate
// snapshots, never the latest one.
func (p *Projector) Watch(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	p.mu.Lock()
	p.nextWatch++
	id := p.nextWatch
	p.watchers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.watchers[id]; ok {
				delete(p.watchers, id)
				close(ch)
			}
		})
	}
}

func (p *Projector) broadcastLocked(s Snapshot) {
	for _, ch := range p.watchers {
		select {
		case ch <- s:
			continue
		default:
		}
		// Full: drop the oldest so the newest always lands.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Close detaches and ends every watcher.
func (p *Projector) Close() {
	p.Detach()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.watchers {
		close(ch)
		delete(p.watchers, id)
	}
}
