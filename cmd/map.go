package cmd

import (
	"fmt"
	"os"

	"github.com/mj1618/winsync/internal/layout"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/spf13/cobra"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render the shared window list as a PNG",
	Long: `Draw every registered window as a labelled rectangle in screen
coordinates and write the result as a PNG.

Examples:
  winsync map
  winsync map --out layout.png --highlight 3`,
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().String("out", "winsync-map.png", "Output file (- for stdout)")
	mapCmd.Flags().Int("highlight", 0, "Fill the window with this id")
	mapCmd.Flags().Int("max-width", 1024, "Maximum image width in pixels")
}

func runMap(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	highlight, _ := cmd.Flags().GetInt("highlight")
	maxWidth, _ := cmd.Flags().GetInt("max-width")

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
	opts := layout.Options{MaxWidth: maxWidth, Highlight: highlight}

	if out == "-" {
		return layout.WritePNG(os.Stdout, windows, opts)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := layout.WritePNG(f, windows, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info().Str("file", out).Int("windows", len(windows)).Msg("wrote window map")
	return nil
}
