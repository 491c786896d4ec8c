package config

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/wprelay/internal/relay"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WPRELAY_"

// Config represents the global ~/.wprelay/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	LogLevel       string `toml:"log_level"`
	Relay          Relay  `toml:"relay"`
	HTTP           HTTP   `toml:"http"`
}

// Relay holds the session and sync settings.
type Relay struct {
	SyncMode                string `toml:"sync_mode"`
	PrimaryRetryAttempts    int    `toml:"primary_retry_attempts"`
	PrimaryRetryDelayMs     int    `toml:"primary_retry_delay_ms"`
	PrimaryAttemptTimeoutMs int    `toml:"primary_attempt_timeout_ms"`
	StartupResyncDelayMs    int    `toml:"startup_resync_delay_ms"`
	MessageLimit            int    `toml:"message_limit"`
	Headless                bool   `toml:"headless"`
	ViewerPath              string `toml:"viewer_path"`
}

// HTTP configures the HTTP relay router.
type HTTP struct {
	Addr      string `toml:"addr"`
	LogBuffer int    `toml:"log_buffer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Relay: Relay{
			SyncMode:                string(relay.ModeAuto),
			PrimaryRetryAttempts:    2,
			PrimaryRetryDelayMs:     250,
			PrimaryAttemptTimeoutMs: 30000,
			StartupResyncDelayMs:    15000,
			MessageLimit:            2500,
			Headless:                true,
		},
		HTTP: HTTP{
			Addr:      "127.0.0.1:4545",
			LogBuffer: 400,
		},
	}
}

// Load reads config from the given path. Returns nil and an error if the file is missing.
// Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	cfg.clamp()
	return cfg, nil
}

// LoadEffective reads path if it exists, applies environment overrides and
// clamps every value into range.
func LoadEffective(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyEnv overrides values from WPRELAY_* variables found by lookup.
// Numbers that do not parse or are not finite take the built-in default.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	def := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int, fallback int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			*dst = fallback
			return
		}
		*dst = int(min(max(n, math.MinInt32), math.MaxInt32))
	}

	str("SESSION", &c.DefaultSession)
	str("LOG_LEVEL", &c.LogLevel)
	str("SYNC_MODE", &c.Relay.SyncMode)
	num("PRIMARY_RETRY_ATTEMPTS", &c.Relay.PrimaryRetryAttempts, def.Relay.PrimaryRetryAttempts)
	num("PRIMARY_RETRY_DELAY_MS", &c.Relay.PrimaryRetryDelayMs, def.Relay.PrimaryRetryDelayMs)
	num("PRIMARY_ATTEMPT_TIMEOUT_MS", &c.Relay.PrimaryAttemptTimeoutMs, def.Relay.PrimaryAttemptTimeoutMs)
	num("STARTUP_RESYNC_DELAY_MS", &c.Relay.StartupResyncDelayMs, def.Relay.StartupResyncDelayMs)
	num("MESSAGE_LIMIT", &c.Relay.MessageLimit, def.Relay.MessageLimit)
	if v, ok := lookup(EnvPrefix + "HEADLESS"); ok {
		c.Relay.Headless = strings.TrimSpace(v) == "true"
	}
	str("VIEWER_PATH", &c.Relay.ViewerPath)
	str("HTTP_ADDR", &c.HTTP.Addr)
	num("HTTP_LOG_BUFFER", &c.HTTP.LogBuffer, def.HTTP.LogBuffer)

	c.clamp()
}

func (c *Config) clamp() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	mode, ok := relay.ParseMode(c.Relay.SyncMode)
	if !ok {
		mode = relay.ModeAuto
	}
	c.Relay.SyncMode = string(mode)
	c.Relay.PrimaryRetryAttempts = clampInt(c.Relay.PrimaryRetryAttempts, 1, 5)
	c.Relay.PrimaryRetryDelayMs = clampInt(c.Relay.PrimaryRetryDelayMs, 0, 5000)
	c.Relay.StartupResyncDelayMs = clampInt(c.Relay.StartupResyncDelayMs, 0, 120000)
	if c.Relay.PrimaryAttemptTimeoutMs < 0 {
		c.Relay.PrimaryAttemptTimeoutMs = 0
	}
	if c.Relay.MessageLimit <= 0 {
		c.Relay.MessageLimit = def.Relay.MessageLimit
	}
	c.Relay.ViewerPath = strings.TrimSpace(c.Relay.ViewerPath)
	if c.HTTP.LogBuffer <= 0 {
		c.HTTP.LogBuffer = def.HTTP.LogBuffer
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// RelayConfig converts the relay section into manager settings for the
// session stored in sessionDir.
func (c *Config) RelayConfig(sessionDir, version string) relay.Config {
	mode, _ := relay.ParseMode(c.Relay.SyncMode)
	cfg := relay.DefaultConfig()
	cfg.Mode = mode
	cfg.RetryAttempts = c.Relay.PrimaryRetryAttempts
	cfg.RetryDelay = ms(c.Relay.PrimaryRetryDelayMs)
	cfg.AttemptTimeout = ms(c.Relay.PrimaryAttemptTimeoutMs)
	cfg.ResyncDelay = ms(c.Relay.StartupResyncDelayMs)
	cfg.MessageLimit = c.Relay.MessageLimit
	cfg.Headless = c.Relay.Headless
	cfg.ViewerPath = c.Relay.ViewerPath
	cfg.SessionDir = sessionDir
	cfg.Version = version
	return cfg
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
