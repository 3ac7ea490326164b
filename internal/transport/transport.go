// Package transport owns the one websocket connection to the game server.
//
// Connect, Disconnect and Reconnect never fail loudly: the outcome is read
// from State(). Send is fire-and-forget and drops messages while
// disconnected. Inbound frames are dispatched to subscribers by a single
// reader goroutine, so handlers run one at a time in server order.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/protocol"
)

type AddressResolver interface {
	ResolveServerAddress(ctx context.Context) string
}

// StaticAddress resolves to itself.
type StaticAddress string

func (a StaticAddress) ResolveServerAddress(context.Context) string { return string(a) }

type ConnectionState struct {
	Connected bool   `json:"isConnected"`
	LastError string `json:"lastError,omitempty"`
	// ConnID identifies the live connection in logs. Empty when disconnected.
	ConnID string `json:"connId,omitempty"`
}

type Options struct {
	Path           string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	OutboxSize     int
	// AutoReconnect schedules one Reconnect after an unexpected loss.
	AutoReconnect bool
	HTTPClient    *http.Client
}

func DefaultOptions() Options {
	return Options{
		Path:           "/ws",
		DialTimeout:    10 * time.Second,
		WriteTimeout:   3 * time.Second,
		PingInterval:   25 * time.Second,
		ReconnectDelay: time.Second,
		OutboxSize:     32,
	}
}

type subscription struct {
	id uint64
	fn func(data json.RawMessage)
}

type watcher struct {
	id uint64
	fn func(ConnectionState)
}

type Transport struct {
	resolver AddressResolver
	opts     Options
	log      *zap.Logger

	mu             sync.Mutex
	current        *connection
	connecting     bool
	gen            uint64
	state          ConnectionState
	reconnectTimer *time.Timer
	closed         bool

	subMu   sync.RWMutex
	subs    map[string][]subscription
	nextSub uint64

	notifyMu  sync.Mutex
	watchers  []watcher
	nextWatch uint64
	published ConnectionState
}

func New(resolver AddressResolver, opts Options, log *zap.Logger) *Transport {
	def := DefaultOptions()
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = def.ReconnectDelay
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = def.OutboxSize
	}
	return &Transport{
		resolver: resolver,
		opts:     opts,
		log:      log,
		subs:     make(map[string][]subscription),
	}
}

func (t *Transport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect dials the server unless a connection is already up or being set
// up. It blocks until the dial finishes or ctx ends.
func (t *Transport) Connect(ctx context.Context) {
	t.mu.Lock()
	if t.closed || t.current != nil || t.connecting {
		t.mu.Unlock()
		return
	}
	t.connecting = true
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	addr := t.resolver.ResolveServerAddress(ctx)
	target, err := websocketURL(addr, t.opts.Path)
	if err != nil {
		t.fail(gen, fmt.Sprintf("invalid server address %q: %v", addr, err))
		return
	}

	id := uuid.NewString()
	log := t.log.With(zap.String("conn_id", id), zap.String("url", target))

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	ws, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{HTTPClient: t.opts.HTTPClient})
	cancel()
	if err != nil {
		log.Warn("connect failed", zap.Error(err))
		t.fail(gen, "connection error: "+err.Error())
		return
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c := &connection{
		id:     id,
		ws:     ws,
		ctx:    connCtx,
		cancel: connCancel,
		outbox: make(chan []byte, t.opts.OutboxSize),
		log:    log,
	}

	t.mu.Lock()
	if gen != t.gen || t.closed {
		// Disconnect or a newer Connect happened while dialing.
		t.mu.Unlock()
		log.Debug("discarding superseded connection")
		c.close(websocket.StatusNormalClosure, "superseded")
		return
	}
	t.current = c
	t.connecting = false
	t.state = ConnectionState{Connected: true, ConnID: id}
	t.mu.Unlock()

	log.Info("connected")
	// Watchers run before the reader starts so nothing arrives unobserved.
	t.publish()

	go t.writeLoop(c)
	go t.readLoop(c)
	if t.opts.PingInterval > 0 {
		go t.pingLoop(c)
	}
}

func (t *Transport) fail(gen uint64, msg string) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.connecting = false
	t.state = ConnectionState{LastError: msg}
	t.mu.Unlock()
	t.publish()
}

// Disconnect closes the connection and cancels a pending Reconnect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	t.mu.Unlock()
	t.disconnect()
}

func (t *Transport) disconnect() {
	t.mu.Lock()
	t.gen++ // invalidates an in-flight dial
	t.connecting = false
	c := t.current
	t.current = nil
	t.state.Connected = false
	t.state.ConnID = ""
	t.mu.Unlock()

	if c != nil {
		c.close(websocket.StatusNormalClosure, "client disconnect")
		c.log.Info("disconnected")
	}
	t.publish()
}

// Reconnect disconnects now and connects again after one fixed delay.
func (t *Transport) Reconnect() {
	t.disconnect()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
	}
	t.reconnectTimer = time.AfterFunc(t.opts.ReconnectDelay, func() {
		t.Connect(context.Background())
	})
}

// Close disconnects for good. Later Connect calls are no-ops.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Disconnect()
	return nil
}

// Send queues one outbound message on the live connection. Without one the
// message is dropped with a warning.
func (t *Transport) Send(event string, payload any) {
	t.mu.Lock()
	c := t.current
	t.mu.Unlock()

	if c == nil {
		t.log.Warn("not connected, dropping message", zap.String("event", event))
		return
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		c.log.Error("could not encode message", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case c.outbox <- frame:
	default:
		c.log.Warn("outbox full, dropping message", zap.String("event", event))
	}
}

// Subscribe registers fn for one inbound event. Subscriptions add up; the
// returned func removes only this one.
func (t *Transport) Subscribe(event string, fn func(data json.RawMessage)) (unsubscribe func()) {
	t.subMu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subs[event] = append(t.subs[event], subscription{id: id, fn: fn})
	t.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.subMu.Lock()
			defer t.subMu.Unlock()
			t.subs[event] = slices.DeleteFunc(t.subs[event], func(s subscription) bool { return s.id == id })
			if len(t.subs[event]) == 0 {
				delete(t.subs, event)
			}
		})
	}
}

// Subscribers reports how many handlers are registered for event.
func (t *Transport) Subscribers(event string) int {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	return len(t.subs[event])
}

// OnStateChange calls fn with every new ConnectionState, in order. fn must
// not call back into Connect, Disconnect, Reconnect or the returned
// unsubscribe func.
func (t *Transport) OnStateChange(fn func(ConnectionState)) (unsubscribe func()) {
	t.notifyMu.Lock()
	t.nextWatch++
	id := t.nextWatch
	t.watchers = append(t.watchers, watcher{id: id, fn: fn})
	t.notifyMu.Unlock()

	return func() {
		t.notifyMu.Lock()
		defer t.notifyMu.Unlock()
		t.watchers = slices.DeleteFunc(t.watchers, func(w watcher) bool { return w.id == id })
	}
}

func (t *Transport) publish() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	st := t.State()
	if st == t.published {
		return
	}
	t.published = st
	for _, w := range t.watchers {
		w.fn(st)
	}
}

func (t *Transport) dispatch(env protocol.Envelope) {
	t.subMu.RLock()
	subs := slices.Clone(t.subs[env.Event])
	t.subMu.RUnlock()

	if len(subs) == 0 {
		t.log.Debug("no subscriber for event", zap.String("event", env.Event))
		return
	}
	for _, s := range subs {
		s.fn(env.Data)
	}
}

func websocketURL(addr, path string) (string, error) {
	if addr == "" {
		return "", errors.New("empty address")
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
