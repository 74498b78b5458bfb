package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/output"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/spf13/cobra"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Watch the shared window list and stream changes as JSONL",
	Long: `Subscribe to the shared window list and emit one JSON object per change
(added, removed, changed window) to stdout. Windows are matched by id, so
moves and resizes are reported even when the set of windows is unchanged.

Output is always JSONL regardless of the --format flag.

Use Ctrl+C or --duration to stop observing.`,
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until Ctrl+C)")
	observeCmd.Flags().Bool("ignore-shape", false, "Ignore position and size changes")
	observeCmd.Flags().Bool("ignore-heartbeat", true, "Ignore lastSeen changes")
}

// observeFilter drops field changes the caller is not interested in.
type observeFilter struct {
	IgnoreShape     bool
	IgnoreHeartbeat bool
}

// apply edits changes in place and returns the ones still worth reporting.
func (f observeFilter) apply(changes []model.WindowChange) []model.WindowChange {
	out := changes[:0]
	for _, c := range changes {
		if c.Type == model.ChangeChanged {
			if f.IgnoreShape {
				delete(c.Changes, "shape")
			}
			if f.IgnoreHeartbeat {
				delete(c.Changes, "lastSeen")
			}
			if len(c.Changes) == 0 {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func runObserve(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetDuration("duration")
	ignoreShape, _ := cmd.Flags().GetBool("ignore-shape")
	ignoreHeartbeat, _ := cmd.Flags().GetBool("ignore-heartbeat")

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx = logging.WithComponent(logging.WithContext(ctx, appLog), "observe")
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	st, err := openStore(ctx, appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	return observeStore(ctx, st, observeFilter{IgnoreShape: ignoreShape, IgnoreHeartbeat: ignoreHeartbeat}, output.NewEventWriter(os.Stdout))
}

// observeStore streams list changes from st until ctx is done. Events that
// cannot be written are logged to the logger carried by ctx.
func observeStore(ctx context.Context, st store.Store, filter observeFilter, events *output.EventWriter) error {
	start := time.Now()
	log := logging.FromContext(ctx)
	emit := func(v interface{}) {
		if err := events.Write(v); err != nil {
			log.Warn().Err(err).Msg("failed to write event")
		}
	}

	var mu sync.Mutex
	eventCount := 0

	prev, err := registry.ReadWindows(ctx, st)
	if err != nil {
		return fmt.Errorf("initial read failed: %w", err)
	}

	emit(map[string]interface{}{
		"type":  "snapshot",
		"ts":    time.Now().Unix(),
		"count": len(prev),
	})

	cancel := st.Subscribe(store.KeyWindows, func(value []byte) {
		curr, _ := registry.DecodeWindows(value)

		mu.Lock()
		defer mu.Unlock()
		for _, change := range filter.apply(model.DiffWindows(prev, curr)) {
			emit(change)
			eventCount++
		}
		prev = curr
	})
	<-ctx.Done()
	cancel()

	mu.Lock()
	n := eventCount
	mu.Unlock()
	emit(map[string]interface{}{
		"type":    "done",
		"ts":      time.Now().Unix(),
		"elapsed": fmt.Sprintf("%.1fs", time.Since(start).Seconds()),
		"events":  n,
	})
	return nil
}
