// Package app wires the catalog client, the download orchestrator and the
// state projection into the single Core that the GUI and CLI drive.
package app

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/rs/zerolog"

	"github.com/ytget/soft-downloader/internal/catalog"
	"github.com/ytget/soft-downloader/internal/download"
	"github.com/ytget/soft-downloader/internal/model"
	"github.com/ytget/soft-downloader/internal/projection"
)

// Catalog fetches product pages
type Catalog interface {
	FetchPage(ctx context.Context, page string) (iter.Seq[model.Product], error)
}

// Core is the presentation-facing entry point
type Core struct {
	catalog   Catalog
	downloads download.Downloader
	projector *projection.Projector
	logger    zerolog.Logger
}

// NewCore creates a core over a catalog client and a downloader
func NewCore(cat Catalog, downloads download.Downloader, logger zerolog.Logger) *Core {
	return &Core{
		catalog:   cat,
		downloads: downloads,
		projector: projection.NewProjector(downloads),
		logger:    logger,
	}
}

// Start begins listening for backend notifications
func (c *Core) Start(ctx context.Context) error {
	return c.downloads.Start(ctx)
}

// Stop ends the notification subscriber and detaches the projector
func (c *Core) Stop() {
	c.downloads.Stop()
	c.projector.Close()
}

// LoadCatalog fetches page and makes it the current catalog. Terminal jobs
// from the previous session are pruned. On failure the current catalog stays
// and the returned error wraps catalog.ErrCatalogUnavailable.
func (c *Core) LoadCatalog(ctx context.Context, page string) ([]model.Product, error) {
	seq, err := c.catalog.FetchPage(ctx, page)
	if err != nil {
		c.logger.Warn().Err(err).Str("page", page).Msg("catalog fetch failed")
		return nil, err
	}

	products := slices.Collect(seq)
	pruned := c.downloads.PruneTerminal()
	c.projector.SetCatalog(products)

	c.logger.Info().Str("page", page).Int("products", len(products)).Int("pruned_jobs", pruned).Msg("catalog loaded")
	return products, nil
}

// Download starts a job for product
func (c *Core) Download(ctx context.Context, product model.Product) model.DownloadJob {
	return c.downloads.StartDownload(ctx, product)
}

// Cancel cancels the job with id
func (c *Core) Cancel(ctx context.Context, id string) error {
	if err := c.downloads.CancelDownload(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// Job returns the job with id
func (c *Core) Job(id string) (model.DownloadJob, bool) {
	return c.downloads.GetJob(id)
}

// Snapshot returns the current renderable state
func (c *Core) Snapshot() projection.Snapshot {
	return c.projector.Snapshot()
}

// Subscribe registers fn for every new snapshot
func (c *Core) Subscribe(fn func(projection.Snapshot)) func() {
	return c.projector.Subscribe(fn)
}

var _ Catalog = (*catalog.Client)(nil)
