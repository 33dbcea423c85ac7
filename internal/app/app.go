// Package app initializes and holds the long-lived services of one
// invocation, acting as a small dependency injection container for the
// CLI commands.
package app

import (
	"errors"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/sorreltree/datalocker/internal/catalog"
	"github.com/sorreltree/datalocker/internal/config"
	"github.com/sorreltree/datalocker/internal/layout"
	"github.com/sorreltree/datalocker/internal/logging"
	"github.com/sorreltree/datalocker/internal/metrics"
)

// App holds the shared services for one invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	layout  layout.Layout
	catalog *catalog.Catalog
	metrics *metrics.Metrics
}

// New builds the services from configuration. The storage root is
// created if missing. A catalog held by another invocation is not an
// error: the run proceeds without one.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	l := layout.New(cfg.Root)

	var cat *catalog.Catalog
	if cfg.Catalog.Enabled {
		if err := os.MkdirAll(l.StoreDir(), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		cat, err = catalog.Open(l.CatalogPath(), cfg.CatalogTimeout())
		if err != nil {
			if !errors.Is(err, bolt.ErrTimeout) {
				return nil, err
			}
			logger.Warn("catalog busy, continuing without it", zap.Error(err))
			cat = nil
		}
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		layout:  l,
		catalog: cat,
		metrics: metrics.New(),
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if err := a.catalog.Close(); err != nil {
		a.logger.Warn("error closing catalog", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Layout returns the storage root's path resolver.
func (a *App) Layout() layout.Layout { return a.layout }

// Catalog returns the blob catalog, or nil when none is available.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Metrics returns the process's Prometheus collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
