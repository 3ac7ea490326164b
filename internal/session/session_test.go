package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   FileStorage{Dir: filepath.Join(t.TempDir(), "bull")},
		"sqlite": db,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			c := newClock()
			s := NewStore(storage, zap.NewNop(), WithClock(c.now))

			_, ok := s.Load()
			require.False(t, ok, "nothing saved yet")

			s.Save("Ana", "ABC123", "p1")
			rec, ok := s.Load()
			require.True(t, ok)
			assert.Equal(t, "Ana", rec.PlayerName)
			assert.Equal(t, "ABC123", rec.LobbyCode)
			assert.Equal(t, "p1", rec.PlayerID)
			assert.True(t, rec.Timestamp.Equal(c.t))

			// overwrite
			s.Save("Ana", "XYZ789", "p9")
			rec, ok = s.Load()
			require.True(t, ok)
			assert.Equal(t, "XYZ789", rec.LobbyCode)

			s.Clear()
			_, ok = s.Load()
			assert.False(t, ok, "cleared")

			// clearing twice is fine
			s.Clear()
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	c := newClock()
	s := NewStore(NewMemoryStorage(), zap.NewNop(), WithClock(c.now))
	s.Save("Ana", "ABC123", "p1")

	c.t = c.t.Add(TTL)
	_, ok := s.Load()
	assert.True(t, ok, "exactly one hour old is still valid")

	c.t = c.t.Add(time.Millisecond)
	_, ok = s.Load()
	assert.False(t, ok, "older than one hour")
}

func TestStore_RejectsBadRecords(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{{{`},
		{name: "missing lobby", raw: `{"playerName":"Ana","playerId":"p1","timestamp":"2026-10-17T12:00:00.000Z"}`},
		{name: "bad timestamp", raw: `{"playerName":"Ana","lobbyCode":"ABC123","playerId":"p1","timestamp":"yesterday"}`},
		{name: "from the future", raw: `{"playerName":"Ana","lobbyCode":"ABC123","playerId":"p1","timestamp":"2026-10-17T13:00:00.000Z"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			require.NoError(t, storage.Set(Key, []byte(tc.raw)))
			s := NewStore(storage, zap.NewNop(), WithClock(newClock().now))

			_, ok := s.Load()
			assert.False(t, ok)
		})
	}
}

func TestStore_AcceptsWebClientRecord(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(Key,
		[]byte(`{"playerName":"Ana","lobbyCode":"ABC123","playerId":"p1","timestamp":"2026-10-17T11:30:00.000Z"}`)))
	s := NewStore(storage, zap.NewNop(), WithClock(newClock().now))

	rec, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "ABC123", rec.LobbyCode)
}

type brokenStorage struct{}

var errDiskFull = errors.New("quota exceeded")

func (brokenStorage) Get(string) ([]byte, error) { return nil, errDiskFull }
func (brokenStorage) Set(string, []byte) error   { return errDiskFull }
func (brokenStorage) Remove(string) error        { return errDiskFull }

func TestStore_StorageErrorsAreLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(brokenStorage{}, zap.New(core))

	s.Save("Ana", "ABC123", "p1")
	_, ok := s.Load()
	s.Clear()

	assert.False(t, ok)
	assert.Equal(t, 3, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, errDiskFull.Error(), entry.ContextMap()["error"])
	}
}

func TestFileStorage_MissingKey(t *testing.T) {
	fs := FileStorage{Dir: t.TempDir()}
	_, err := fs.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, fs.Remove("nope"))
}
