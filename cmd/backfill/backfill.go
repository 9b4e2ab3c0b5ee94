// Package backfill implements the one-shot and scheduled backfill
// commands.
package backfill

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/fieldops/geosync/cmd/common"
	"github.com/fieldops/geosync/internal/geo"
	"github.com/fieldops/geosync/internal/logger"
	"github.com/fieldops/geosync/internal/scheduler"
)

// Command returns the backfill command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Geocode records missing coordinates and write them back",
		Long: `Run backfill passes until every record either has coordinates
or cannot currently be geocoded. With --follow, keep running on the
configured cron schedule instead of exiting after the drain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return runScheduled(cmd.Context(), *cfgFile, *debug)
			}
			return runDrain(cmd.Context(), *cfgFile, *debug)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "keep running on the configured cron schedule")

	return cmd
}

// runDrain drives passes directly, pausing the configured interval
// between them, until an evaluation finds no missing records or no
// pass makes progress.
func runDrain(ctx context.Context, cfgFile string, debug bool) error {
	// Internal rescheduling is disabled; this loop owns the cadence.
	deps, err := common.NewDeps(cfgFile, debug,
		scheduler.WithScheduleFunc(func(d time.Duration, f func()) {}),
	)
	if err != nil {
		return err
	}
	defer deps.Close()

	previous := -1
	for {
		missing, err := countMissing(ctx, deps)
		if err != nil {
			return fmt.Errorf("count missing records: %w", err)
		}
		if missing == 0 {
			deps.Logger.Info("All records have coordinates")
			return nil
		}
		if missing == previous {
			deps.Logger.Warn("No progress on remaining records, stopping",
				logger.Int("remaining", missing),
			)
			return nil
		}
		previous = missing

		deps.Logger.Info("Running backfill pass", logger.Int("missing", missing))
		deps.Backfill.RunBackfillPass(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(deps.Config.Scheduler.MinInterval):
		}
	}
}

// runScheduled runs passes on the configured cron schedule until
// interrupted.
func runScheduled(ctx context.Context, cfgFile string, debug bool) error {
	deps, err := common.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	spec := deps.Config.Scheduler.CronSpec
	if spec == "" {
		return fmt.Errorf("scheduler cron_spec is required with --follow")
	}

	c := cron.New()
	if _, cronErr := c.AddFunc(spec, func() {
		deps.Backfill.RunBackfillPass(context.Background())
	}); cronErr != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, cronErr)
	}

	deps.Logger.Info("Running scheduled backfill", logger.String("cron_spec", spec))
	c.Start()
	defer c.Stop()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-runCtx.Done()

	return nil
}

// countMissing reports how many records still lack coordinates.
func countMissing(ctx context.Context, deps *common.Deps) (int, error) {
	locations, err := deps.Store.FetchAll(ctx)
	if err != nil {
		return 0, err
	}

	missing := 0
	for _, loc := range locations {
		if geo.IsMissing(loc.Lat, loc.Lng) {
			missing++
		}
	}
	return missing, nil
}
