package config

import (
	"fmt"
	"strings"

	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/model"
)

func validateConfig(cfg *Config) error {
	var errs []string
	errs = append(errs, validateStore(cfg)...)
	errs = append(errs, validateRegistry(cfg)...)
	errs = append(errs, validateLogging(cfg)...)
	errs = append(errs, validateServe(cfg)...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateStore(cfg *Config) []string {
	var errs []string
	switch cfg.Store.Backend {
	case BackendFile, BackendSQLite:
		if cfg.Store.Path == "" {
			errs = append(errs, "store.path must be set")
		}
	case BackendWS:
		if !strings.HasPrefix(cfg.Store.URL, "ws://") && !strings.HasPrefix(cfg.Store.URL, "wss://") {
			errs = append(errs, "store.url must start with ws:// or wss://")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be one of file, sqlite, ws (got %q)", cfg.Store.Backend))
	}
	if cfg.Store.PollInterval <= 0 {
		errs = append(errs, "store.poll_interval must be positive")
	}
	return errs
}

func validateRegistry(cfg *Config) []string {
	var errs []string
	if _, err := model.ParseChangeDetection(cfg.Registry.ChangeDetection); err != nil {
		errs = append(errs, "registry.change_detection: "+err.Error())
	}
	if cfg.Registry.FrameInterval <= 0 {
		errs = append(errs, "registry.frame_interval must be positive")
	}
	if cfg.Registry.HeartbeatInterval < 0 {
		errs = append(errs, "registry.heartbeat_interval must be non-negative")
	}
	if cfg.Registry.HeartbeatInterval > 0 && cfg.Registry.StaleAfter <= cfg.Registry.HeartbeatInterval {
		errs = append(errs, "registry.stale_after must be longer than registry.heartbeat_interval")
	}
	return errs
}

func validateLogging(cfg *Config) []string {
	var errs []string
	if !logging.IsValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level: invalid level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be console or json (got %q)", cfg.Logging.Format))
	}
	return errs
}

func validateServe(cfg *Config) []string {
	var errs []string
	switch cfg.Serve.Transport {
	case "stdio":
	case "http":
		if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
			errs = append(errs, "serve.port must be between 1 and 65535 for the http transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("serve.transport must be stdio or http (got %q)", cfg.Serve.Transport))
	}
	if cfg.Serve.CacheTTL < 0 {
		errs = append(errs, "serve.cache_ttl must be non-negative")
	}
	return errs
}
