// Package cmd defines and implements the CLI commands for the
// datalocker executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sorreltree/datalocker/internal/app"
	"github.com/sorreltree/datalocker/internal/config"
)

var (
	cfgFile  string
	rootFlag string
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datalocker",
		Short: "Fetch a list of URLs into a deduplicated, versioned store.",
		Long: `datalocker periodically fetches a list of URLs and keeps a
time-ordered history of every fetch without ever storing the same
bytes twice. Content is stored once per unique byte sequence and each
fetch becomes a dated hard link into that store, so repeated and
shared content costs nothing extra on disk.

Independent invocations may run against the same storage root
concurrently; per-source lock files with dead-owner detection keep
them out of each other's way.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&rootFlag, "root", "", "storage root directory")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// buildApp loads configuration, applies flag overrides, and assembles
// the application services.
func buildApp(extraRoot string) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}
	if extraRoot != "" {
		cfg.Root = extraRoot
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	return a, nil
}

// Execute is the main entry point. A termination signal cancels the
// command context so an in-flight run stops between sources.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
