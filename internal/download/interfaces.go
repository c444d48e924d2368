package download

import (
	"context"

	"github.com/ytget/soft-downloader/internal/model"
)

// Downloader defines the interface for the download orchestrator.
type Downloader interface {
	// OnUpdate registers fn to receive a copy of every changed job; the returned func unregisters it
	OnUpdate(fn func(model.DownloadJob)) func()
	StartDownload(ctx context.Context, product model.Product) model.DownloadJob
	GetJob(id string) (model.DownloadJob, bool)
	ListJobs() []model.DownloadJob
	CancelDownload(ctx context.Context, id string) error
	PruneTerminal() int

	Start(ctx context.Context) error
	Stop()
}

var _ Downloader = (*Orchestrator)(nil)
