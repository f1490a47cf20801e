// Package config loads shortcut-panel configuration from a TOML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the config file.
const (
	EnvHome       = "SHORTCUT_PANEL_HOME"
	EnvAPIServer  = "FEEDBACK_API_SERVER"
	EnvAPIKey     = "FEEDBACK_API_KEY"
	EnvPort       = "PORT"
	EnvStateFile  = "STATE_FILE"
	EnvSettingsDB = "SETTINGS_DB"
)

// Duration is a time.Duration that decodes from strings like "10s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// APIConfig describes the upstream shortcuts API.
type APIConfig struct {
	Server  string   `toml:"server"`  // Shortcuts endpoint URL
	Key     string   `toml:"key"`     // Sent as X-API-Key
	Timeout Duration `toml:"timeout"` // Per-request timeout (default: 10s)
}

// CacheConfig controls the in-memory shortcut cache.
type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"` // default: 5m
}

// UIConfig holds widget settings.
type UIConfig struct {
	Container string            `toml:"container"` // Root container selector
	Input     string            `toml:"input"`     // Target text field selector
	Locale    string            `toml:"locale"`    // BCP 47 tag used to order groups
	Strings   map[string]string `toml:"strings"`   // Translation overrides
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int      `toml:"port"`
	RefreshPerMin   float64  `toml:"refresh_per_min"` // Upstream refreshes allowed per minute
	RefreshBurst    int      `toml:"refresh_burst"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	SessionIdle     Duration `toml:"session_idle"` // Disconnected widget sessions are dropped after this
}

// StorageConfig selects where widget state is persisted.
type StorageConfig struct {
	StateFile  string `toml:"state_file"`  // JSON key/value file
	SettingsDB string `toml:"settings_db"` // Optional SQLite settings store; takes precedence
}

type Config struct {
	API     APIConfig     `toml:"api"`
	Cache   CacheConfig   `toml:"cache"`
	UI      UIConfig      `toml:"ui"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default home directory.
// Respects SHORTCUT_PANEL_HOME.
func DefaultHome() string {
	if h := os.Getenv(EnvHome); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shortcut-panel"
	}
	return filepath.Join(home, ".shortcut-panel")
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	homeDir := DefaultHome()
	return &Config{
		HomeDir: homeDir,
		API: APIConfig{
			Timeout: Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     Duration(5 * time.Minute),
		},
		UI: UIConfig{
			Container: "#shortcutsContainer",
			Input:     "#combinedFeedbackText",
			Locale:    "en",
			Strings:   map[string]string{},
		},
		Server: ServerConfig{
			Port:            8080,
			RefreshPerMin:   6,
			RefreshBurst:    2,
			ShutdownTimeout: Duration(5 * time.Second),
			SessionIdle:     Duration(30 * time.Minute),
		},
		Storage: StorageConfig{
			StateFile: filepath.Join(homeDir, "state.json"),
		},
	}
}

// Load reads the configuration from path, then applies environment
// overrides. If path is empty, uses $SHORTCUT_PANEL_HOME/config.toml.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.HomeDir, "config.toml")
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Storage.StateFile = expandPath(cfg.Storage.StateFile)
	cfg.Storage.SettingsDB = expandPath(cfg.Storage.SettingsDB)
	if cfg.UI.Strings == nil {
		cfg.UI.Strings = map[string]string{}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIServer); v != "" {
		c.API.Server = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvStateFile); v != "" {
		c.Storage.StateFile = v
	}
	if v := os.Getenv(EnvSettingsDB); v != "" {
		c.Storage.SettingsDB = v
	}
	return nil
}

// MissingError reports required settings that have no value. Vars holds the
// environment variable names that would supply them.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing configuration: " + strings.Join(e.Vars, ", ")
}

// Validate returns a *MissingError when the upstream API is not configured.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.API.Server) == "" {
		missing = append(missing, EnvAPIServer)
	}
	if strings.TrimSpace(c.API.Key) == "" {
		missing = append(missing, EnvAPIKey)
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
