package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/output"
	"github.com/mj1618/winsync/internal/platform"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Register a window and keep it in sync until interrupted",
	Long: `Register this process as a window in the shared list, then run a frame loop
that re-reads the window's shape and publishes moves and resizes.

New shapes are read from stdin as "x,y,w,h" lines. The window leaves the list
on Ctrl+C, SIGTERM or when stdin is closed.

Events are streamed to stdout as JSONL regardless of the --format flag:
  joined, shape_changed, windows_changed, reaped, left

Examples:
  winsync join --shape 0,0,800,600 --meta name=left
  printf '100,0,800,600\n' | winsync join --shape 0,0,800,600
  winsync join --shape 0,0,800,600 --no-stdin --heartbeat 2s`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().String("shape", "0,0,0,0", "Initial window shape as x,y,w,h")
	joinCmd.Flags().StringArray("meta", nil, "Metadata key=value attached at registration (repeatable)")
	joinCmd.Flags().Bool("no-stdin", false, "Do not read shapes from stdin; run until interrupted")
	joinCmd.Flags().Duration("frame-interval", 0, "Update interval (default from config: registry.frame_interval)")
	joinCmd.Flags().Duration("heartbeat", 0, "Heartbeat interval; enables stale window reaping (0 = off)")
	joinCmd.Flags().Duration("stale-after", 0, "Reap windows whose heartbeat is older than this (default from config)")
	joinCmd.Flags().Bool("include-windows", true, "Include the full window list in windows_changed events")
}

// errInputClosed ends a session when stdin reaches EOF.
var errInputClosed = errors.New("input closed")

// joinOptions configures one join session.
type joinOptions struct {
	Meta              model.MetaData
	Shape             model.Shape
	FrameInterval     time.Duration
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	IncludeWindows    bool
}

func runJoin(cmd *cobra.Command, args []string) error {
	shapeStr, _ := cmd.Flags().GetString("shape")
	metaPairs, _ := cmd.Flags().GetStringArray("meta")
	noStdin, _ := cmd.Flags().GetBool("no-stdin")
	frame, _ := cmd.Flags().GetDuration("frame-interval")
	heartbeat, _ := cmd.Flags().GetDuration("heartbeat")
	staleAfter, _ := cmd.Flags().GetDuration("stale-after")
	includeWindows, _ := cmd.Flags().GetBool("include-windows")

	shape, err := platform.ParseShape(shapeStr)
	if err != nil {
		return fmt.Errorf("invalid --shape: %w", err)
	}
	meta, err := platform.ParseMeta(metaPairs)
	if err != nil {
		return fmt.Errorf("invalid --meta: %w", err)
	}

	rc := appConfig.Registry
	opts := joinOptions{
		Meta:              meta,
		Shape:             shape,
		FrameInterval:     durationOrConfig(cmd.Flags().Changed("frame-interval"), frame, rc.FrameInterval),
		HeartbeatInterval: durationOrConfig(cmd.Flags().Changed("heartbeat"), heartbeat, rc.HeartbeatInterval),
		StaleAfter:        durationOrConfig(cmd.Flags().Changed("stale-after"), staleAfter, rc.StaleAfter),
		IncludeWindows:    includeWindows,
	}
	if opts.FrameInterval <= 0 {
		return fmt.Errorf("--frame-interval must be positive")
	}
	if opts.HeartbeatInterval > 0 && opts.StaleAfter <= opts.HeartbeatInterval {
		return fmt.Errorf("--stale-after must be longer than --heartbeat")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx = logging.WithComponent(logging.WithContext(ctx, appLog), "join")

	st, err := openStore(ctx, appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	regOpts, err := registryOptions(appConfig.Registry, appLog)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if noStdin {
		in = nil
	}
	return runJoinSession(ctx, st, opts, in, output.NewEventWriter(os.Stdout), regOpts...)
}

// runJoinSession registers a window on st and keeps it updated until ctx is
// done or in reaches EOF. A nil in means run until ctx is done. The window
// always attempts to leave the list before returning. Logs go to the logger
// carried by ctx.
func runJoinSession(ctx context.Context, st store.Store, opts joinOptions, in io.Reader, events *output.EventWriter, regOpts ...registry.Option) error {
	log := *logging.FromContext(ctx)
	src := platform.NewFixedSource(opts.Shape)
	reg := registry.New(st, src, regOpts...)

	emit := func(ev output.JoinEvent) {
		ev.TS = time.Now().UnixMilli()
		ev.WindowID = reg.ThisWindowID()
		if err := events.Write(ev); err != nil {
			log.Warn().Err(err).Str("event", ev.Event).Msg("failed to write event")
		}
	}

	reg.SetWinShapeChangeCallback(func() {
		shape := reg.ThisWindowData().Shape
		emit(output.JoinEvent{Event: output.EventShapeChanged, Shape: &shape})
	})
	reg.SetWinChangeCallback(func() {
		ev := output.JoinEvent{Event: output.EventWindowsChanged}
		if opts.IncludeWindows {
			ev.Windows = reg.Windows()
		}
		emit(ev)
	})

	if err := reg.Init(ctx, opts.Meta); err != nil {
		_ = reg.Close(context.Background())
		return fmt.Errorf("register window: %w", err)
	}
	ctx = logging.WithWindowID(ctx, reg.ThisWindowID())
	log = *logging.FromContext(ctx)
	joined := reg.ThisWindowData().Shape
	emit(output.JoinEvent{Event: output.EventJoined, Shape: &joined, Windows: reg.Windows()})

	// Reading stdin blocks and cannot be interrupted, so it runs outside the
	// group and only reports EOF.
	inputDone := make(chan error, 1)
	if in != nil {
		go func() {
			inputDone <- platform.FeedShapes(ctx, in, src, func(line string, err error) {
				log.Warn().Err(err).Str("line", line).Msg("ignoring malformed shape")
			})
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-inputDone:
			if err != nil {
				log.Warn().Err(err).Msg("stdin read failed")
			}
			return errInputClosed
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(opts.FrameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := reg.Update(gctx); err != nil {
					if errors.Is(err, registry.ErrClosed) {
						return err
					}
					log.Warn().Err(err).Msg("update failed")
				}
			}
		}
	})

	if opts.HeartbeatInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.HeartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := reg.Heartbeat(gctx); err != nil {
						log.Warn().Err(err).Msg("heartbeat failed")
						continue
					}
					removed, err := reg.ReapStale(gctx, opts.StaleAfter)
					if err != nil {
						log.Warn().Err(err).Msg("reap failed")
						continue
					}
					if len(removed) > 0 {
						emit(output.JoinEvent{Event: output.EventReaped, Removed: removed})
					}
				}
			}
		})
	}

	err := g.Wait()

	// The session context may already be canceled; leaving gets its own.
	closeCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if cerr := reg.Close(closeCtx); cerr != nil {
		log.Warn().Err(cerr).Msg("failed to remove window from shared list")
	}
	emit(output.JoinEvent{Event: output.EventLeft})

	if err == nil || errors.Is(err, errInputClosed) {
		return nil
	}
	return err
}
