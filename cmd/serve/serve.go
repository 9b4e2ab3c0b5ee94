// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/fieldops/geosync/cmd/common"
	"github.com/fieldops/geosync/internal/api"
	"github.com/fieldops/geosync/internal/logger"
)

// Command returns the serve command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server. Listing locations triggers backfill
passes in the background; an optional cron spec runs passes on a
schedule as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.Context(), *cfgFile, *debug)
		},
	}
}

// Start runs the server until interrupted.
func Start(ctx context.Context, cfgFile string, debug bool) error {
	// Phase 1: dependencies
	deps, err := common.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Phase 2: optional periodic backfill passes
	if spec := deps.Config.Scheduler.CronSpec; spec != "" {
		c := cron.New()
		if _, cronErr := c.AddFunc(spec, func() {
			deps.Backfill.RunBackfillPass(context.Background())
		}); cronErr != nil {
			return fmt.Errorf("invalid cron spec %q: %w", spec, cronErr)
		}
		c.Start()
		defer c.Stop()
		deps.Logger.Info("Periodic backfill enabled", logger.String("cron_spec", spec))
	}

	// Phase 3: HTTP server
	var publisher api.EventPublisher
	if deps.Publisher != nil {
		publisher = deps.Publisher
	}
	locations := api.NewLocationsHandler(deps.Store, deps.Backfill, publisher, deps.Logger)
	server := api.NewServer(deps.Config.Server, deps.Logger, locations, deps.Registry)

	// Phase 4: run until SIGINT or SIGTERM
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(runCtx)
}
