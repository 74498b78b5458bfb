package cmd

import (
	"context"
	"fmt"

	"github.com/mj1618/winsync/internal/store"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the shared window list and id counter",
	Long: `Delete both shared keys. Running windows notice an empty list and keep
working; ids restart at 1 for windows that join afterwards.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx, appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := clearShared(ctx, st); err != nil {
		return err
	}
	appLog.Info().Msg("cleared shared window list")
	return nil
}

func clearShared(ctx context.Context, st store.Store) error {
	for _, key := range []string{store.KeyWindows, store.KeyCount} {
		if err := st.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
