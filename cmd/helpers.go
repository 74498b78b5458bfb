package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mj1618/winsync/internal/config"
	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/mj1618/winsync/internal/store/filestore"
	"github.com/mj1618/winsync/internal/store/sqlitestore"
	"github.com/mj1618/winsync/internal/store/wsbroker"
	"github.com/rs/zerolog"
)

// dialTimeout bounds connecting to a broker.
const dialTimeout = 5 * time.Second

// openStore opens the backend selected by cfg.
func openStore(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return filestore.Open(cfg.Path, filestore.WithLogger(log))
	case config.BackendSQLite:
		return sqlitestore.Open(logging.WithContext(ctx, log), cfg.Path, sqlitestore.WithPollInterval(cfg.PollInterval))
	case config.BackendWS:
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		return wsbroker.Dial(dctx, cfg.URL, log)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s (use file, sqlite or ws)", cfg.Backend)
	}
}

// registryOptions builds registry options from cfg.
func registryOptions(cfg config.RegistryConfig, log zerolog.Logger) ([]registry.Option, error) {
	mode, err := model.ParseChangeDetection(cfg.ChangeDetection)
	if err != nil {
		return nil, err
	}
	return []registry.Option{
		registry.WithLogger(log),
		registry.WithChangeDetection(mode),
	}, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// durationOrConfig returns the flag value when it was set, else fallback.
func durationOrConfig(changed bool, flag, fallback time.Duration) time.Duration {
	if changed {
		return flag
	}
	return fallback
}
