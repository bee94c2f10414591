// Package cli provides the pulse command line.
package cli

import (
	gocontext "context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/config"
	"github.com/example/pulse/internal/ctxutil"
	"github.com/example/pulse/internal/logging"
	"github.com/example/pulse/internal/version"
	"github.com/example/pulse/internal/wire"
)

var (
	// globalActorID is the user acting through this invocation (--as).
	globalActorID string
	configPath    string
	debug         bool

	containerOnce sync.Once
	container     *wire.Container
	containerErr  error
)

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActor(ctx, globalActorID)
	}
	return ctx
}

// app returns the wired application, building it on first use.
func app() (*wire.Container, error) {
	containerOnce.Do(func() {
		cfg, err := config.Load(configPath)
		if err != nil {
			containerErr = err
			return
		}
		if debug {
			cfg.Log.Debug = true
		}

		logger, err := logging.New(cfg.Log.Debug)
		if err != nil {
			containerErr = err
			return
		}

		container, containerErr = wire.New(gocontext.Background(), cfg, logger)
		if containerErr != nil {
			containerErr = fmt.Errorf("failed to initialize pulse: %w", containerErr)
		}
	})
	return container, containerErr
}

func closeApp() {
	if container == nil {
		return
	}
	container.Close()
	_ = container.Logger.Sync()
}

// RootCmd returns the pulse root command with every subcommand attached.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "pulse",
		Short:   "Pulse - escalation engine for project teams",
		Version: version.String(),
		Long: `Pulse watches projects for blockers, deadline risk and low output, and
escalates each condition through a configured chain of people until
someone resolves it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pulse.yaml (default: ./pulse.yaml, ~/.pulse/pulse.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalActorID, "as", "", "User ID acting through this command")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(BlockCmd())
	rootCmd.AddCommand(InstanceCmd())
	rootCmd.AddCommand(BlockerCmd())
	rootCmd.AddCommand(ScanCmd())
	rootCmd.AddCommand(JobsCmd())
	rootCmd.AddCommand(LogCmd())

	// Database maintenance
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(SeedCmd())

	return rootCmd
}

