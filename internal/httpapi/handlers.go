// Package httpapi serves a read-only debug view of a running client, plus a
// manual reconnect button.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/bull-client/internal/projector"
	"github.com/DoyleJ11/bull-client/internal/runtimeconfig"
	"github.com/DoyleJ11/bull-client/internal/transport"
)

// Backend is what the debug surface reads from. *client.Client satisfies it.
type Backend interface {
	ConnectionState() transport.ConnectionState
	Snapshot() projector.Snapshot
	Events() []projector.LogEntry
	RuntimeConfig(ctx context.Context) runtimeconfig.Config
	Reconnect()
}

// stateView adds the derived values to the raw snapshot.
type stateView struct {
	projector.Snapshot
	IsHost       bool `json:"isHost"`
	CanStartGame bool `json:"canStartGame"`
	IsGameActive bool `json:"isGameActive"`
	IsReady      bool `json:"isReady"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Healthz answers 200 while connected and 503 otherwise, with the
// connection state as body.
func Healthz(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := b.ConnectionState()
		status := http.StatusOK
		if !st.Connected {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, st)
	}
}

func RuntimeConfig(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.RuntimeConfig(r.Context()))
	}
}

func State(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := b.Snapshot()
		writeJSON(w, http.StatusOK, stateView{
			Snapshot:     s,
			IsHost:       s.IsHost(),
			CanStartGame: s.CanStartGame(),
			IsGameActive: s.IsGameActive(),
			IsReady:      s.IsReady(),
		})
	}
}

// Events returns the debug log. ?quarantined=true keeps only rejected
// payloads; ?limit=N keeps the newest N.
func Events(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := b.Events()

		if q := r.URL.Query().Get("quarantined"); q != "" {
			want, err := strconv.ParseBool(q)
			if err != nil {
				http.Error(w, "quarantined must be a boolean", http.StatusBadRequest)
				return
			}
			kept := events[:0:0]
			for _, e := range events {
				if e.Quarantined == want {
					kept = append(kept, e)
				}
			}
			events = kept
		}

		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			if n < len(events) {
				events = events[len(events)-n:]
			}
		}

		if events == nil {
			events = []projector.LogEntry{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func Reconnect(b Backend, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("manual reconnect requested", zap.String("remote", r.RemoteAddr))
		b.Reconnect()
		w.WriteHeader(http.StatusAccepted)
	}
}
