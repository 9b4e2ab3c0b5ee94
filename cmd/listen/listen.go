// Package listen implements the event listener command, a debugging
// aid that prints every broadcast location event.
package listen

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldops/geosync/cmd/common"
	"github.com/fieldops/geosync/internal/events"
)

// Command returns the listen command.
func Command(cfgFile *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to location events and log them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.Context(), *cfgFile, *debug)
		},
	}
}

// Start subscribes to the location events channel until interrupted.
func Start(ctx context.Context, cfgFile string, debug bool) error {
	deps, err := common.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	if deps.RedisClient() == nil {
		return fmt.Errorf("redis address is required to listen for events")
	}

	sub := events.NewSubscriber(deps.RedisClient(), events.NewLogHandler(deps.Logger), deps.Logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sub.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
