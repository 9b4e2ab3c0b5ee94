// Package cmd implements the command-line interface for the geosync
// service.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fieldops/geosync/cmd/backfill"
	"github.com/fieldops/geosync/cmd/listen"
	"github.com/fieldops/geosync/cmd/serve"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "geosync",
		Short: "Geocoding backfill service for spreadsheet-stored locations",
		Long: `geosync keeps a spreadsheet-backed location dataset mappable:
it discovers rows without coordinates, geocodes them in small
quota-friendly batches, and writes the results back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("geosync version %s\n", version)
		},
	})

	rootCmd.AddCommand(serve.Command(&cfgFile, &debug))
	rootCmd.AddCommand(backfill.Command(&cfgFile, &debug))
	rootCmd.AddCommand(listen.Command(&cfgFile, &debug))
}

// version is set at build time via -ldflags.
var version = "dev"
