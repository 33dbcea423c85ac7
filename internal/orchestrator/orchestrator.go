// Package orchestrator runs one batch pass: every source is driven
// through lock, update, unlock in sequence. A source that fails is
// logged and abandoned for this run; the batch always continues with
// the next source, and a held lock is always released before the
// failure surfaces.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/sorreltree/datalocker/internal/coordinator"
	"github.com/sorreltree/datalocker/internal/lockfile"
	"github.com/sorreltree/datalocker/internal/metrics"
)

// Summary tallies one batch pass.
type Summary struct {
	Stored      int
	NotModified int
	RemoteError int
	Contended   int
	Failed      int
}

// Orchestrator iterates sources.
type Orchestrator struct {
	locks   *lockfile.Manager
	coord   *coordinator.Coordinator
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New constructs an Orchestrator.
func New(locks *lockfile.Manager, coord *coordinator.Coordinator, m *metrics.Metrics, log *zap.Logger) *Orchestrator {
	return &Orchestrator{locks: locks, coord: coord, metrics: m, log: log}
}

// Run processes every URL once, sequentially. Contention and per-source
// failures are recorded, never escalated; Run only stops early when the
// context is canceled.
func (o *Orchestrator) Run(ctx context.Context, urls []string) Summary {
	var sum Summary
	for _, rawURL := range urls {
		if ctx.Err() != nil {
			o.log.Info("run canceled", zap.Error(ctx.Err()))
			break
		}
		o.processOne(ctx, rawURL, &sum)
	}
	o.log.Info("run complete",
		zap.Int("stored", sum.Stored),
		zap.Int("not_modified", sum.NotModified),
		zap.Int("remote_error", sum.RemoteError),
		zap.Int("contended", sum.Contended),
		zap.Int("failed", sum.Failed))
	return sum
}

func (o *Orchestrator) processOne(ctx context.Context, rawURL string, sum *Summary) {
	ok, err := o.locks.Acquire(rawURL)
	if err != nil {
		o.log.Error("cannot lock source", zap.String("url", rawURL), zap.Error(err))
		o.metrics.SourcesTotal.WithLabelValues("error").Inc()
		sum.Failed++
		return
	}
	if !ok {
		o.log.Debug("source busy, skipping", zap.String("url", rawURL))
		o.metrics.SourcesTotal.WithLabelValues("lock_contention").Inc()
		sum.Contended++
		return
	}
	defer func() {
		if err := o.locks.Release(rawURL); err != nil {
			o.log.Error("cannot release lock", zap.String("url", rawURL), zap.Error(err))
		}
	}()

	outcome, err := o.coord.Update(ctx, rawURL)
	if err != nil {
		o.log.Error("update failed", zap.String("url", rawURL), zap.Error(err))
		o.metrics.SourcesTotal.WithLabelValues("error").Inc()
		sum.Failed++
		return
	}
	o.metrics.SourcesTotal.WithLabelValues(outcome.String()).Inc()
	switch outcome {
	case coordinator.OutcomeStored:
		sum.Stored++
	case coordinator.OutcomeNotModified:
		sum.NotModified++
	case coordinator.OutcomeRemoteError:
		sum.RemoteError++
	}
}
