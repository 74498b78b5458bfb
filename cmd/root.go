package cmd

import (
	"fmt"
	"os"

	"github.com/mj1618/winsync/internal/config"
	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/output"
	"github.com/mj1618/winsync/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "winsync",
	Short: "Keep a shared list of windows in sync across processes",
	Long: `winsync registers windows in a shared key-value store so sibling processes
can see each other's position and size, notice when windows join or leave,
and clean up after themselves.

The store is a directory (default), a SQLite file, or a websocket broker.`,
	SilenceUsage: true,
}

var (
	// appConfig is loaded by the root PersistentPreRunE.
	appConfig *config.Config
	// appLog is the logger built from appConfig.
	appLog = zerolog.Nop()
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	pf := rootCmd.PersistentFlags()
	pf.String("format", "yaml", "Output format: yaml, json")
	pf.String("config", "", "Config file (default: $XDG_CONFIG_HOME/winsync/config.yaml)")
	pf.String("log-level", "", "Log level: trace, debug, info, warn, error")
	pf.String("store", "", "Store backend: file, sqlite, ws")
	pf.String("store-path", "", "Store directory (file) or database file (sqlite)")
	pf.String("store-url", "", "Broker URL for the ws backend")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Use the root persistent flag directly to avoid conflicts with
		// subcommand local flags.
		format, _ := pf.GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
		}
		output.OutputFormat = f
		if prettyFlag := cmd.Flags().Lookup("pretty"); prettyFlag != nil {
			if pretty, err := cmd.Flags().GetBool("pretty"); err == nil && pretty {
				output.PrettyOutput = true
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg
		appLog = logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	}
}

// loadConfig reads the config file and environment, then applies any root
// flags that were set explicitly.
func loadConfig() (*config.Config, error) {
	pf := rootCmd.PersistentFlags()
	file, _ := pf.GetString("config")
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{
		"log-level":  "logging.level",
		"store":      "store.backend",
		"store-path": "store.path",
		"store-url":  "store.url",
	}
	for flag, key := range overrides {
		if pf.Changed(flag) {
			v, _ := pf.GetString(flag)
			mgr.Set(key, v)
		}
	}
	return mgr.Load()
}
