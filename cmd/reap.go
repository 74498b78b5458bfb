package cmd

import (
	"fmt"
	"time"

	"github.com/mj1618/winsync/internal/output"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/spf13/cobra"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Remove windows whose heartbeat is stale",
	Long: `Remove every window whose lastSeen stamp is older than --stale-after.
Windows that never sent a heartbeat are left alone.`,
	RunE: runReap,
}

func init() {
	rootCmd.AddCommand(reapCmd)
	reapCmd.Flags().Duration("stale-after", 0, "Staleness threshold (default from config: registry.stale_after)")
	reapCmd.Flags().Bool("pretty", false, "Pretty-print output (no-op for YAML)")
}

func runReap(cmd *cobra.Command, args []string) error {
	staleAfter, _ := cmd.Flags().GetDuration("stale-after")
	staleAfter = durationOrConfig(cmd.Flags().Changed("stale-after"), staleAfter, appConfig.Registry.StaleAfter)
	if staleAfter <= 0 {
		return fmt.Errorf("--stale-after must be positive")
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	removed, err := registry.Reap(ctx, st, staleAfter, now)
	if err != nil {
		return err
	}
	if removed == nil {
		removed = []int{}
	}
	return output.Print(output.ReapResult{TS: now.Unix(), Removed: removed})
}
