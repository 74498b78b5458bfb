package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Chdir(home)
	return home
}

func TestSetDefaults(t *testing.T) {
	mgr := &Manager{viper: viper.New()}
	mgr.setDefaults()

	assert.Equal(t, "file", mgr.viper.GetString("store.backend"))
	assert.Equal(t, "positional", mgr.viper.GetString("registry.change_detection"))
	assert.Equal(t, 16*time.Millisecond, mgr.viper.GetDuration("registry.frame_interval"))
	assert.Equal(t, "stdio", mgr.viper.GetString("serve.transport"))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	home := isolate(t)

	mgr, err := NewManager("")
	require.NoError(t, err)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, "state", "winsync", "store"), cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Registry.StaleAfter)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "winsync.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
store:
  backend: SQLite
registry:
  change_detection: deep
  frame_interval: 50ms
  heartbeat_interval: 2s
  stale_after: 10s
serve:
  transport: http
  port: 8090
`), 0o600))

	mgr, err := NewManager(file)
	require.NoError(t, err)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, "data", "winsync", "winsync.db"), cfg.Store.Path)
	assert.Equal(t, "deep", cfg.Registry.ChangeDetection)
	assert.Equal(t, 50*time.Millisecond, cfg.Registry.FrameInterval)
	assert.Equal(t, 2*time.Second, cfg.Registry.HeartbeatInterval)
	assert.Equal(t, 8090, cfg.Serve.Port)
	assert.Equal(t, file, mgr.ConfigFileUsed())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	home := isolate(t)
	mgr, err := NewManager(filepath.Join(home, "nope.yaml"))
	require.NoError(t, err)
	_, err = mgr.Load()
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("WINSYNC_STORE_BACKEND", "ws")
	t.Setenv("WINSYNC_STORE_URL", "ws://localhost:9000/")
	t.Setenv("WINSYNC_LOG_LEVEL", "debug")
	t.Setenv("WINSYNC_REGISTRY_FRAME_INTERVAL", "250ms")

	mgr, err := NewManager("")
	require.NoError(t, err)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, BackendWS, cfg.Store.Backend)
	assert.Equal(t, "ws://localhost:9000/", cfg.Store.URL)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Registry.FrameInterval)
}

func TestLoad_SetOverrides(t *testing.T) {
	isolate(t)
	mgr, err := NewManager("")
	require.NoError(t, err)
	mgr.Set("store.path", "/tmp/elsewhere")
	cfg, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.Store.Path)
}

func TestValidateConfig_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "redis"
	cfg.Registry.ChangeDetection = "fuzzy"
	cfg.Registry.FrameInterval = 0
	cfg.Logging.Format = "xml"
	cfg.Serve.Transport = "http"

	err := validateConfig(cfg)
	require.Error(t, err)
	for _, want := range []string{"store.backend", "registry.change_detection", "registry.frame_interval", "logging.format", "serve.port"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateConfig_HeartbeatNeedsLongerStaleAfter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = "/tmp/x"
	cfg.Registry.HeartbeatInterval = time.Minute
	cfg.Registry.StaleAfter = 30 * time.Second

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.stale_after")

	cfg.Registry.StaleAfter = 3 * time.Minute
	assert.NoError(t, validateConfig(cfg))
}

func TestNormalizeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = " FILE "
	cfg.Registry.ChangeDetection = ""
	normalizeConfig(cfg)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "positional", cfg.Registry.ChangeDetection)
}
