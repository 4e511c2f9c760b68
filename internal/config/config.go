// Package config handles loading and managing letters configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the letters configuration.
type Config struct {
	Data       DataConfig       `toml:"data"`
	Identity   IdentityConfig   `toml:"identity"`
	Remote     RemoteConfig     `toml:"remote"`
	Server     ServerConfig     `toml:"server"`
	Retry      RetryConfig      `toml:"retry"`
	Navigation NavigationConfig `toml:"navigation"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir     string `toml:"data_dir"`
	DatabaseURL string `toml:"database_url"`
}

// IdentityConfig selects the user the local store acts as.
type IdentityConfig struct {
	UserID string `toml:"user_id"`
}

// RemoteConfig points the CLI at a hosted letters server.
type RemoteConfig struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	AllowInsecure  bool   `toml:"allow_insecure"` // permit plain http
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort         int           `toml:"api_port"`  // default: 8080
	BindAddr        string        `toml:"bind_addr"` // default: 127.0.0.1
	RateLimitRPS    float64       `toml:"rate_limit_rps"`
	RateLimitBurst  int           `toml:"rate_limit_burst"`
	CORSOrigins     []string      `toml:"cors_origins"`
	CORSCredentials bool          `toml:"cors_credentials"`
	CORSMaxAge      int           `toml:"cors_max_age"`
	Tokens          []TokenConfig `toml:"tokens"`
}

// TokenConfig maps a bearer token to the user it authenticates.
type TokenConfig struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id"`
}

// RetryConfig tunes the retry policy for reads.
type RetryConfig struct {
	MaxAttempts    int `toml:"max_attempts"`
	InitialDelayMS int `toml:"initial_delay_ms"`
}

// NavigationConfig tunes gesture handling in the reader.
type NavigationConfig struct {
	SwipeThresholdNarrow float64 `toml:"swipe_threshold_narrow"`
	SwipeThresholdWide   float64 `toml:"swipe_threshold_wide"`
	NarrowBreakpoint     float64 `toml:"narrow_breakpoint"`
	WheelThreshold       float64 `toml:"wheel_threshold"`
	WheelResetMS         int     `toml:"wheel_reset_ms"`
	WheelStep            float64 `toml:"wheel_step"` // delta contributed by one wheel notch
	EnableGestures       bool    `toml:"enable_gestures"`
}

// DefaultHome returns the default letters home directory.
// Respects LETTERS_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("LETTERS_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".letters"
	}
	return filepath.Join(home, ".letters")
}

// NewDefaultConfig returns a configuration with default values rooted at
// DefaultHome.
func NewDefaultConfig() *Config {
	return newDefaultConfig(DefaultHome())
}

func newDefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			APIPort:        8080,
			BindAddr:       "127.0.0.1",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMS: 1000,
		},
		Navigation: NavigationConfig{
			SwipeThresholdNarrow: 30,
			SwipeThresholdWide:   50,
			NarrowBreakpoint:     768,
			WheelThreshold:       50,
			WheelResetMS:         200,
			WheelStep:            20,
			EnableGestures:       true,
		},
	}
}

// Load reads the configuration from the specified file.
//
// If path is empty, config.toml is read from homeDir, or from DefaultHome
// when homeDir is also empty; a missing default file yields defaults. An
// explicit path that does not exist is an error, and the home directory is
// derived from the file's parent.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""
	switch {
	case homeDir != "":
		homeDir = expandPath(homeDir)
	case explicit:
		homeDir = filepath.Dir(expandPath(path))
	default:
		homeDir = DefaultHome()
	}
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := newDefaultConfig(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w%s", err, backslashHint(err))
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	if cfg.Data.DataDir != "" && !filepath.IsAbs(cfg.Data.DataDir) {
		cfg.Data.DataDir = filepath.Join(filepath.Dir(path), cfg.Data.DataDir)
	}
	return cfg, nil
}

// backslashHint explains the usual cause of TOML escape errors: Windows
// paths written in double quotes.
func backslashHint(err error) string {
	msg := err.Error()
	if !strings.Contains(msg, "escape") && !strings.Contains(msg, "hexadecimal digits") {
		return ""
	}
	return "\n\nhint: backslashes in double-quoted TOML strings are escape sequences; " +
		"use forward slashes (C:/Users/me/letters) or single quotes ('C:\\Users\\me\\letters')"
}

// ConfigFilePath returns the path the configuration was loaded from.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// DatabaseDSN returns the database location: database_url when set,
// otherwise letters.db in the data directory.
func (c *Config) DatabaseDSN() string {
	if c.Data.DatabaseURL != "" {
		return c.Data.DatabaseURL
	}
	return filepath.Join(c.Data.DataDir, "letters.db")
}

// IsRemote reports whether a remote server is configured.
func (c *Config) IsRemote() bool {
	return c.Remote.URL != ""
}

// Timeout returns the remote request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// InitialDelay returns the first retry backoff.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// WheelReset returns the pause after which wheel input starts a new gesture.
func (n NavigationConfig) WheelReset() time.Duration {
	return time.Duration(n.WheelResetMS) * time.Millisecond
}

// TokenUsers returns the configured token to user id map. Entries missing
// either side are skipped.
func (s ServerConfig) TokenUsers() map[string]string {
	out := make(map[string]string, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.Token == "" || t.UserID == "" {
			continue
		}
		out[t.Token] = t.UserID
	}
	return out
}

// ValidateSecure refuses to expose the API beyond loopback without tokens.
func (s ServerConfig) ValidateSecure() error {
	if len(s.TokenUsers()) > 0 || isLoopback(s.BindAddr) {
		return nil
	}
	return fmt.Errorf("refusing to bind %s without authentication: add [[server.tokens]] to config.toml", s.BindAddr)
}

func isLoopback(addr string) bool {
	if addr == "" || addr == "localhost" {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
