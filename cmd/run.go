package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sorreltree/datalocker/internal/app"
	"github.com/sorreltree/datalocker/internal/blobstore"
	"github.com/sorreltree/datalocker/internal/coordinator"
	collyfetcher "github.com/sorreltree/datalocker/internal/fetcher/colly"
	"github.com/sorreltree/datalocker/internal/history"
	"github.com/sorreltree/datalocker/internal/lockfile"
	"github.com/sorreltree/datalocker/internal/orchestrator"
	"github.com/sorreltree/datalocker/internal/urllist"
)

// toolName is what the liveness check looks for in another process's
// command name before honoring its lock.
const toolName = "datalocker"

// newRunCmd creates the 'run' subcommand: one sequential batch pass
// over the URL list.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [root]",
		Short: "Fetch every URL in the list once",
		Long: `Reads <root>/.urllist and drives each source through
lock, conditional fetch, store, and unlock. Sources locked by another
live invocation are skipped; a failing source is logged and abandoned
without stopping the batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			a, err := buildApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			return runBatch(cmd.Context(), a)
		},
	}
}

func runBatch(ctx context.Context, a *app.App) error {
	runID := uuid.NewString()
	log := a.Logger().With(
		zap.String("run_id", runID),
		zap.Int("pid", os.Getpid()),
		zap.String("root", a.Layout().Root()))

	stopMetrics := maybeServeMetrics(a, log)
	defer stopMetrics()

	urls, err := urllist.Read(a.Layout().URLListPath())
	if err != nil {
		return err
	}
	log.Info("starting run", zap.Int("sources", len(urls)))

	l := a.Layout()
	clk := clock.New()
	fetch := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.Config().HTTP.UserAgent,
		Timeout:   a.Config().HTTPTimeout(),
	})
	coord := coordinator.New(
		l, blobstore.New(l), history.New(l), fetch,
		a.Catalog(), a.Metrics(), clk, log)
	locks := lockfile.New(l, os.Getpid(), lockfile.NewOSTable(toolName), clk, log)

	orchestrator.New(locks, coord, a.Metrics(), log).Run(ctx, urls)
	return nil
}

// maybeServeMetrics starts the Prometheus listener when configured and
// returns a stop function.
func maybeServeMetrics(a *app.App, log *zap.Logger) func() {
	listen := a.Config().Metrics.Listen
	if listen == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics().Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
