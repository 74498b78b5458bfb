package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Manager loads configuration through viper.
type Manager struct {
	viper *viper.Viper
	file  string
}

// NewManager creates a manager. When file is empty, config.yaml is looked up
// in the XDG config directory and the current directory, and a missing file
// is not an error.
func NewManager(file string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine config directory: %w", err)
		}
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WINSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "WINSYNC_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind WINSYNC_LOG_LEVEL: %w", err)
	}

	return &Manager{viper: v, file: file}, nil
}

func (m *Manager) setDefaults() {
	d := DefaultConfig()
	m.viper.SetDefault("store.backend", d.Store.Backend)
	m.viper.SetDefault("store.path", d.Store.Path)
	m.viper.SetDefault("store.url", d.Store.URL)
	m.viper.SetDefault("store.poll_interval", d.Store.PollInterval)

	m.viper.SetDefault("registry.change_detection", d.Registry.ChangeDetection)
	m.viper.SetDefault("registry.frame_interval", d.Registry.FrameInterval)
	m.viper.SetDefault("registry.heartbeat_interval", d.Registry.HeartbeatInterval)
	m.viper.SetDefault("registry.stale_after", d.Registry.StaleAfter)

	m.viper.SetDefault("logging.level", d.Logging.Level)
	m.viper.SetDefault("logging.format", d.Logging.Format)

	m.viper.SetDefault("serve.transport", d.Serve.Transport)
	m.viper.SetDefault("serve.port", d.Serve.Port)
	m.viper.SetDefault("serve.cache_ttl", d.Serve.CacheTTL)
}

// Load reads the file (if any) and environment, then normalizes and
// validates the result.
func (m *Manager) Load() (*Config, error) {
	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", m.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	normalizeConfig(cfg)
	if cfg.Store.Path == "" && cfg.Store.Backend != BackendWS {
		p, err := DefaultStorePath(cfg.Store.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store path: %w", err)
		}
		cfg.Store.Path = p
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the file viper read, or the file requested.
func (m *Manager) ConfigFileUsed() string {
	if used := m.viper.ConfigFileUsed(); used != "" {
		return used
	}
	return m.file
}

// Set overrides a key, as a command-line flag would.
func (m *Manager) Set(key string, value any) {
	m.viper.Set(key, value)
}

func normalizeConfig(cfg *Config) {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Registry.ChangeDetection = strings.ToLower(strings.TrimSpace(cfg.Registry.ChangeDetection))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Serve.Transport = strings.ToLower(strings.TrimSpace(cfg.Serve.Transport))
	if cfg.Registry.ChangeDetection == "" {
		cfg.Registry.ChangeDetection = "positional"
	}
}
