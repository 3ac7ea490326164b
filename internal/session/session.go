// Package session remembers which lobby this client last joined so a lost
// connection or a restart can rejoin as the same player. Storage problems
// are logged and swallowed; the caller just sees no saved session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	Key = "bull-game-state"
	TTL = time.Hour

	// Tolerated clock skew for records stamped slightly in the future.
	maxSkew = time.Minute
)

var (
	ErrNotFound      = errors.New("not found")
	ErrExpired       = errors.New("session expired")
	ErrInvalidRecord = errors.New("invalid session record")
)

type Record struct {
	PlayerName string    `json:"playerName"`
	LobbyCode  string    `json:"lobbyCode"`
	PlayerID   string    `json:"playerId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Storage is a small key/value store, the shape of browser localStorage.
// Get returns ErrNotFound for a missing key.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

type Store struct {
	storage Storage
	log     *zap.Logger
	now     func() time.Time
	ttl     time.Duration
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithTTL(ttl time.Duration) Option { return func(s *Store) { s.ttl = ttl } }

func NewStore(storage Storage, log *zap.Logger, opts ...Option) *Store {
	s := &Store{storage: storage, log: log, now: time.Now, ttl: TTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(playerName, lobbyCode, playerID string) {
	rec := Record{
		PlayerName: playerName,
		LobbyCode:  lobbyCode,
		PlayerID:   playerID,
		// millisecond precision, same as the web client's toISOString
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("could not encode session", zap.Error(err))
		return
	}
	if err := s.storage.Set(Key, data); err != nil {
		s.log.Warn("could not save session", zap.Error(err))
		return
	}
	s.log.Debug("session saved", zap.String("lobby", lobbyCode), zap.String("player_id", playerID))
}

// Load returns the saved record if it exists, parses and is younger than the TTL.
func (s *Store) Load() (Record, bool) {
	data, err := s.storage.Get(Key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("could not read session", zap.Error(err))
		}
		return Record{}, false
	}

	rec, err := s.parse(data)
	if err != nil {
		s.log.Debug("ignoring saved session", zap.Error(err))
		return Record{}, false
	}
	return rec, true
}

func (s *Store) Clear() {
	if err := s.storage.Remove(Key); err != nil {
		s.log.Warn("could not clear session", zap.Error(err))
	}
}

func (s *Store) parse(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if rec.PlayerName == "" || rec.LobbyCode == "" || rec.PlayerID == "" || rec.Timestamp.IsZero() {
		return Record{}, ErrInvalidRecord
	}

	age := s.now().Sub(rec.Timestamp)
	if age > s.ttl {
		return Record{}, fmt.Errorf("%w: saved %s ago", ErrExpired, age.Round(time.Second))
	}
	if age < -maxSkew {
		return Record{}, fmt.Errorf("%w: timestamp in the future", ErrInvalidRecord)
	}
	return rec, nil
}
