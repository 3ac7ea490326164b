// Package runtimeconfig resolves the backend address at startup. A JSON
// document served next to the client wins over the build-time default.
package runtimeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DocumentPath      = "/runtime-config.json"
	DefaultBackendURL = "http://localhost:3001"
	DefaultMode       = "development"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/DoyleJ11/bull-client/internal/runtimeconfig.BuildBackendURL=https://bull.example"
var (
	BuildBackendURL = ""
	BuildMode       = ""
)

var ErrMalformedDocument = errors.New("malformed runtime config")

type Config struct {
	BackendURL string `json:"VITE_BACKEND_URL"`
	Mode       string `json:"MODE"`
	BuildTime  string `json:"BUILD_TIME"`
}

// Fallback returns the compiled-in configuration, overridden by
// BULL_BACKEND_URL / BULL_MODE when set.
func Fallback() Config {
	cfg := Config{
		BackendURL: firstNonEmpty(os.Getenv("BULL_BACKEND_URL"), BuildBackendURL, DefaultBackendURL),
		Mode:       firstNonEmpty(os.Getenv("BULL_MODE"), BuildMode, DefaultMode),
		BuildTime:  time.Now().UTC().Format(time.RFC3339),
	}
	return cfg
}

type Options struct {
	// DocumentURL is the absolute URL of the runtime config document. Empty
	// skips the fetch and always uses the fallback.
	DocumentURL string
	Fallback    Config
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Loader caches the resolved Config for the life of the process. Create one
// per process and share it.
type Loader struct {
	opts  Options
	log   *zap.Logger
	group singleflight.Group

	mu     sync.RWMutex
	cached *Config
	gen    uint64
}

func NewLoader(opts Options, log *zap.Logger) *Loader {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Fallback.BackendURL == "" {
		opts.Fallback = Fallback()
	}
	return &Loader{opts: opts, log: log}
}

// Load returns the cached config, or fetches it. Concurrent callers share
// one fetch. A caller whose ctx ends early gets the fallback.
func (l *Loader) Load(ctx context.Context) Config {
	l.mu.RLock()
	if l.cached != nil {
		cfg := *l.cached
		l.mu.RUnlock()
		return cfg
	}
	gen := l.gen
	l.mu.RUnlock()

	ch := l.group.DoChan(flightKey(gen), func() (any, error) {
		return l.resolve(gen), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Config)
	case <-ctx.Done():
		l.log.Warn("runtime config wait cancelled, using fallback", zap.Error(ctx.Err()))
		return l.opts.Fallback
	}
}

func (l *Loader) resolve(gen uint64) Config {
	// A flight that finished just before this one started already cached.
	l.mu.RLock()
	if l.cached != nil && gen == l.gen {
		cfg := *l.cached
		l.mu.RUnlock()
		return cfg
	}
	l.mu.RUnlock()

	// Not tied to any single caller.
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.Timeout)
	defer cancel()

	cfg, err := l.fetch(ctx)
	if err != nil {
		l.log.Warn("runtime config unavailable, using fallback",
			zap.String("url", l.opts.DocumentURL),
			zap.String("backend_url", l.opts.Fallback.BackendURL),
			zap.Error(err))
		cfg = l.opts.Fallback
	} else {
		l.log.Info("runtime config loaded",
			zap.String("backend_url", cfg.BackendURL),
			zap.String("mode", cfg.Mode))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		// Reset while we were fetching; the caller still gets an answer
		// but the cache belongs to the newer generation.
		return cfg
	}
	if l.cached == nil {
		l.cached = &cfg
	}
	return *l.cached
}

func (l *Loader) fetch(ctx context.Context) (Config, error) {
	if l.opts.DocumentURL == "" {
		return Config{}, errors.New("no document url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.opts.DocumentURL, nil)
	if err != nil {
		return Config{}, err
	}
	resp, err := l.opts.HTTPClient.Do(req)
	if err != nil {
		return Config{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Config{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var cfg Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("%w: VITE_BACKEND_URL is empty", ErrMalformedDocument)
	}
	return cfg, nil
}

// ResolveServerAddress satisfies transport.AddressResolver.
func (l *Loader) ResolveServerAddress(ctx context.Context) string {
	return l.Load(ctx).BackendURL
}

// ServerAddressSync never blocks: cached value or fallback.
func (l *Loader) ServerAddressSync() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cached != nil {
		return l.cached.BackendURL
	}
	return l.opts.Fallback.BackendURL
}

// Current reports the cached config, if any.
func (l *Loader) Current() (Config, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cached == nil {
		return Config{}, false
	}
	return *l.cached, true
}

// Reset drops the cache. Fetches already in flight finish but are not cached.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.cached = nil
	l.gen++
	l.mu.Unlock()
}

func flightKey(gen uint64) string {
	return fmt.Sprintf("runtime-config/%d", gen)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
