package cmd

import (
	"time"

	"github.com/mj1618/winsync/internal/output"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the windows in the shared list",
	Long:  "Print every registered window with its id, shape and metadata, plus the id counter. Does not register a window.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Int("id", 0, "Only show the window with this id")
	listCmd.Flags().Bool("no-meta", false, "Omit metadata")
	listCmd.Flags().Bool("pretty", false, "Pretty-print output (no-op for YAML)")
}

func runList(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetInt("id")
	noMeta, _ := cmd.Flags().GetBool("no-meta")

	ctx := cmd.Context()
	st, err := openStore(ctx, appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	windows, err := registry.ReadWindows(ctx, st)
	if err != nil {
		return err
	}
	count, err := registry.ReadCount(ctx, st)
	if err != nil {
		return err
	}

	if id != 0 {
		filtered := windows[:0]
		for _, w := range windows {
			if w.ID == id {
				filtered = append(filtered, w)
			}
		}
		windows = filtered
	}
	if noMeta {
		for i := range windows {
			windows[i].MetaData = nil
		}
	}

	return output.Print(output.ListResult{
		TS:      time.Now().Unix(),
		Count:   count,
		Windows: windows,
	})
}
