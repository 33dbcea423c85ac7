// Package coordinator drives the update of a single source: decide the
// conditional-fetch precondition, perform the GET, and on fresh content
// store the blob, link it into history, and advance the marker. The
// whole sequence assumes the caller holds the source's lock.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sorreltree/datalocker/internal/blobstore"
	"github.com/sorreltree/datalocker/internal/catalog"
	"github.com/sorreltree/datalocker/internal/fetcher"
	"github.com/sorreltree/datalocker/internal/history"
	"github.com/sorreltree/datalocker/internal/layout"
	"github.com/sorreltree/datalocker/internal/metrics"
)

// Outcome classifies how an update ended.
type Outcome int

const (
	// OutcomeStored means fresh content was stored and linked.
	OutcomeStored Outcome = iota
	// OutcomeNotModified means the server reported unchanged content.
	OutcomeNotModified
	// OutcomeRemoteError means the fetch failed or returned an error
	// status; nothing was stored.
	OutcomeRemoteError
)

// String returns the outcome's metrics label.
func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeRemoteError:
		return "remote_error"
	}
	return "unknown"
}

// Coordinator updates sources.
type Coordinator struct {
	layout  layout.Layout
	blobs   *blobstore.Store
	links   *history.Linker
	fetcher fetcher.Fetcher
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	clock   clock.Clock
	log     *zap.Logger
}

// New constructs a Coordinator. catalog may be nil when no catalog is
// available this run.
func New(
	l layout.Layout,
	blobs *blobstore.Store,
	links *history.Linker,
	f fetcher.Fetcher,
	cat *catalog.Catalog,
	m *metrics.Metrics,
	clk clock.Clock,
	log *zap.Logger,
) *Coordinator {
	return &Coordinator{
		layout:  l,
		blobs:   blobs,
		links:   links,
		fetcher: f,
		catalog: cat,
		metrics: m,
		clock:   clk,
		log:     log,
	}
}

// Update fetches rawURL conditionally and records fresh content. Soft
// HTTP outcomes (not modified, error statuses, unreachable hosts) are
// logged and reported through the Outcome; only storage failures
// return an error.
func (c *Coordinator) Update(ctx context.Context, rawURL string) (Outcome, error) {
	req := fetcher.Request{URL: rawURL}

	markerPath, err := c.layout.MarkerPath(rawURL)
	if err != nil {
		return OutcomeRemoteError, err
	}
	if info, err := os.Stat(markerPath); err == nil {
		req.IfModifiedSince = info.ModTime()
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		c.log.Info("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return OutcomeRemoteError, nil
	}
	if resp.NotModified() {
		c.log.Debug("not modified", zap.String("url", rawURL))
		return OutcomeNotModified, nil
	}
	if !resp.OK() {
		c.log.Info("remote error",
			zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		return OutcomeRemoteError, nil
	}

	now := c.clock.Now()
	blobPath, err := c.blobs.Put(resp.Body)
	if err != nil {
		return OutcomeRemoteError, fmt.Errorf("store %s: %w", rawURL, err)
	}
	c.metrics.BlobsWritten.Inc()
	c.metrics.BytesStored.Add(float64(len(resp.Body)))
	refPath, err := c.links.Link(blobPath, rawURL, now)
	if err != nil {
		return OutcomeRemoteError, fmt.Errorf("record history for %s: %w", rawURL, err)
	}
	if err := touch(markerPath, now); err != nil {
		return OutcomeRemoteError, fmt.Errorf("update marker for %s: %w", rawURL, err)
	}

	digest := blobstore.Digest(resp.Body)
	if err := c.catalog.Record(digest, int64(len(resp.Body)), rawURL, now); err != nil {
		// The trees on disk are already consistent; a catalog write
		// failure only loses index data.
		c.log.Warn("catalog update failed",
			zap.String("url", rawURL), zap.Error(err))
	}

	c.log.Info("stored",
		zap.String("url", rawURL),
		zap.String("digest", digest),
		zap.Int("bytes", len(resp.Body)),
		zap.String("ref", refPath))
	return OutcomeStored, nil
}

// touch creates the zero-byte marker and sets its mtime, which is the
// marker's only meaningful value.
func touch(path string, at time.Time) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return err
	}
	return os.Chtimes(path, at, at)
}
