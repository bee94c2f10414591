package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/pulse/internal/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the escalation workers, detectors and ops endpoints",
	Long: `Run pulse as a long-lived process:

  - delayed job workers fire escalation steps when they come due
  - the deadline and output detectors run on their configured intervals
  - /healthz, /readyz and /metrics are served on http.addr

Stops cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noHTTP, _ := cmd.Flags().GetBool("no-http")

		c, err := app()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c.Logger.Info("pulse starting",
			zap.String("database", c.Config.Database.Path),
			zap.Strings("notify_drivers", c.Config.Notify.Drivers),
			zap.Int("periodic_jobs", len(c.Periodic.Jobs())))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return c.Jobs.Run(ctx) })
		g.Go(func() error { return c.Periodic.Run(ctx) })
		if !noHTTP {
			srv := httpserver.New(c.Config.HTTP.Addr, c.DB, c.Logger, c.Config.Log.Debug)
			g.Go(func() error { return srv.Run(ctx) })
		}

		if err := g.Wait(); err != nil && err != context.Canceled {
			return fmt.Errorf("pulse stopped: %w", err)
		}
		c.Logger.Info("pulse stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("no-http", false, "Do not serve the ops endpoints")
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return serveCmd
}
