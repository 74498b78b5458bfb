package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/mj1618/winsync/internal/store/wsbroker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run a websocket broker for the ws store backend",
	Long: `Run a websocket broker that holds the shared keys in memory and relays
every write to the other connected clients. Point processes at it with
--store ws --store-url ws://ADDR/.

The broker's state is lost when it exits.`,
	RunE: runBroker,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
	brokerCmd.Flags().String("addr", "127.0.0.1:7447", "Listen address")
}

func runBroker(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveBroker(ctx, ln)
}

// serveBroker runs a hub on ln until ctx is done.
func serveBroker(ctx context.Context, ln net.Listener) error {
	log := appLog.With().Str("component", "broker").Logger()
	hub := wsbroker.NewHub(log)
	srv := &http.Server{
		Handler:           hub,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("broker listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
