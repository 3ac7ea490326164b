// Package config loads the terminal client's settings: built-in defaults,
// then an optional YAML profile, then BULL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	// BackendURL overrides the runtime config document when set.
	BackendURL string `yaml:"backend_url"`
	Mode       string `yaml:"mode"`
	// ConfigURL points at a runtime-config.json document. Empty skips it.
	ConfigURL   string          `yaml:"config_url"`
	SessionDir  string          `yaml:"session_dir"`
	SessionDB   string          `yaml:"session_db"`
	LogLevel    string          `yaml:"log_level"`
	DebugAddr   string          `yaml:"debug_addr"`
	HistorySize int             `yaml:"history_size"`
	Transport   TransportConfig `yaml:"transport"`
}

type TransportConfig struct {
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	AutoReconnect  bool          `yaml:"auto_reconnect"`
}

func Default() Config {
	return Config{
		Mode:        "development",
		LogLevel:    "info",
		HistorySize: 100,
		Transport: TransportConfig{
			DialTimeout:    10 * time.Second,
			WriteTimeout:   3 * time.Second,
			PingInterval:   25 * time.Second,
			ReconnectDelay: time.Second,
			AutoReconnect:  true,
		},
	}
}

// Load builds the config. An empty profile path skips the YAML step.
func Load(profile string) (Config, error) {
	cfg := Default()
	if profile != "" {
		data, err := os.ReadFile(profile)
		if err != nil {
			return Config{}, fmt.Errorf("read profile %s: %w", profile, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse profile %s: %w", profile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"BULL_BACKEND_URL": &c.BackendURL,
		"BULL_MODE":        &c.Mode,
		"BULL_CONFIG_URL":  &c.ConfigURL,
		"BULL_SESSION_DIR": &c.SessionDir,
		"BULL_SESSION_DB":  &c.SessionDB,
		"BULL_LOG_LEVEL":   &c.LogLevel,
		"BULL_DEBUG_ADDR":  &c.DebugAddr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("BULL_AUTO_RECONNECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: BULL_AUTO_RECONNECT: %v", ErrInvalid, err)
		}
		c.Transport.AutoReconnect = b
	}
	return nil
}

func (c Config) Validate() error {
	for name, raw := range map[string]string{"backend_url": c.BackendURL, "config_url": c.ConfigURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalid, name, raw)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return fmt.Errorf("%w: %s scheme %q", ErrInvalid, name, u.Scheme)
		}
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history_size must be > 0", ErrInvalid)
	}
	if c.Transport.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: transport.reconnect_delay must be > 0", ErrInvalid)
	}
	return nil
}

// Production reports whether the mode asks for production behaviour.
func (c Config) Production() bool { return c.Mode == "production" }
