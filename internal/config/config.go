// Package config loads winsync settings from defaults, an optional YAML
// file and WINSYNC_* environment variables.
package config

import "time"

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendWS     = "ws"
)

// Config is the full set of settings.
type Config struct {
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry" json:"registry"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging" json:"logging"`
	Serve    ServeConfig    `mapstructure:"serve" yaml:"serve" json:"serve"`
}

// StoreConfig selects and locates the shared store.
type StoreConfig struct {
	// Backend is one of file, sqlite or ws.
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// Path is the store directory (file) or database file (sqlite).
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// URL is the broker address for the ws backend.
	URL string `mapstructure:"url" yaml:"url" json:"url"`
	// PollInterval is how often the sqlite backend looks for sibling writes.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
}

// RegistryConfig tunes the window registry and the join host loop.
type RegistryConfig struct {
	ChangeDetection   string        `mapstructure:"change_detection" yaml:"change_detection" json:"change_detection"`
	FrameInterval     time.Duration `mapstructure:"frame_interval" yaml:"frame_interval" json:"frame_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval" json:"heartbeat_interval"`
	StaleAfter        time.Duration `mapstructure:"stale_after" yaml:"stale_after" json:"stale_after"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServeConfig configures the MCP server.
type ServeConfig struct {
	Transport string        `mapstructure:"transport" yaml:"transport" json:"transport"`
	Port      int           `mapstructure:"port" yaml:"port" json:"port"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig returns the settings used when nothing overrides them.
// Store.Path is left empty and resolved per backend at load time.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:      BackendFile,
			URL:          "ws://127.0.0.1:7447/",
			PollInterval: 100 * time.Millisecond,
		},
		Registry: RegistryConfig{
			ChangeDetection:   "positional",
			FrameInterval:     16 * time.Millisecond,
			HeartbeatInterval: 0,
			StaleAfter:        30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Serve: ServeConfig{
			Transport: "stdio",
			Port:      0,
			CacheTTL:  time.Second,
		},
	}
}
