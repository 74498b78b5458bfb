package config

import (
	"os"
	"path/filepath"
)

const (
	appName      = "winsync"
	databaseName = "winsync.db"
	storeDirName = "store"
)

// XDGDirs holds the XDG Base Directory paths for winsync.
type XDGDirs struct {
	ConfigHome string
	DataHome   string
	StateHome  string
}

// GetXDGDirs returns $XDG_CONFIG_HOME/winsync, $XDG_DATA_HOME/winsync and
// $XDG_STATE_HOME/winsync, falling back to the usual locations under $HOME.
func GetXDGDirs() (*XDGDirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	resolve := func(env string, fallback ...string) string {
		base := os.Getenv(env)
		if base == "" {
			base = filepath.Join(append([]string{homeDir}, fallback...)...)
		}
		return filepath.Join(base, appName)
	}

	return &XDGDirs{
		ConfigHome: resolve("XDG_CONFIG_HOME", ".config"),
		DataHome:   resolve("XDG_DATA_HOME", ".local", "share"),
		StateHome:  resolve("XDG_STATE_HOME", ".local", "state"),
	}, nil
}

// GetConfigDir returns the XDG config directory for winsync.
func GetConfigDir() (string, error) {
	dirs, err := GetXDGDirs()
	if err != nil {
		return "", err
	}
	return dirs.ConfigHome, nil
}

// DefaultStorePath returns where a backend keeps its data when store.path is
// not set: a directory for the file backend, a database file for sqlite.
func DefaultStorePath(backend string) (string, error) {
	dirs, err := GetXDGDirs()
	if err != nil {
		return "", err
	}
	if backend == BackendSQLite {
		return filepath.Join(dirs.DataHome, databaseName), nil
	}
	return filepath.Join(dirs.StateHome, storeDirName), nil
}
