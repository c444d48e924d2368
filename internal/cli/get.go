package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ytget/soft-downloader/internal/app"
	"github.com/ytget/soft-downloader/internal/model"
	"github.com/ytget/soft-downloader/internal/projection"
)

// cancelTimeout bounds the cancel requests sent on interrupt
const cancelTimeout = 5 * time.Second

// ErrDownloadsFailed is returned by get when at least one download did not complete
var ErrDownloadsFailed = errors.New("downloads failed")

func newGetCommand(current func() *Runtime) *cobra.Command {
	var page string

	cmd := &cobra.Command{
		Use:   "get NAME...",
		Short: "Download products by name without opening the window",
		Long: `Download one or more products from a catalog page and print their
progress until every download has finished. Names are matched without
regard to case. Ctrl-C cancels the downloads still running.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGet(ctx, current(), cmd.OutOrStdout(), page, args)
		},
	}

	cmd.Flags().StringVarP(&page, "page", "p", "1", "catalog page holding the products")
	return cmd
}

func runGet(ctx context.Context, rt *Runtime, out io.Writer, page string, names []string) error {
	core, err := rt.buildCore(ctx)
	if err != nil {
		return err
	}
	if err := core.Start(ctx); err != nil {
		return err
	}
	defer core.Stop()
	rt.serveMetrics(ctx)

	products, err := core.LoadCatalog(ctx, page)
	if err != nil {
		return err
	}
	selected, missing := selectProducts(products, names)
	if len(missing) > 0 {
		return fmt.Errorf("not on catalog page %s: %s", page, strings.Join(missing, ", "))
	}

	updates := make(chan struct{}, 1)
	unsubscribe := core.Subscribe(func(projection.Snapshot) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ids := make([]string, 0, len(selected))
	for _, p := range selected {
		ids = append(ids, core.Download(ctx, p).ID)
	}

	w := newProgressWriter(out, newStyles())
	for {
		jobs := currentJobs(core, ids)
		w.write(jobs)
		if allTerminal(jobs) {
			return summarize(jobs)
		}

		select {
		case <-updates:
		case <-ctx.Done():
			cancelActive(core, jobs, rt.Logger)
			w.write(currentJobs(core, ids))
			return ctx.Err()
		}
	}
}

// selectProducts picks the first product per name, ignoring case
func selectProducts(products []model.Product, names []string) (selected []model.Product, missing []string) {
	for _, name := range names {
		found := false
		for _, p := range products {
			if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
				selected = append(selected, p)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return selected, missing
}

func currentJobs(core *app.Core, ids []string) []model.DownloadJob {
	jobs := make([]model.DownloadJob, 0, len(ids))
	for _, id := range ids {
		if job, ok := core.Job(id); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func allTerminal(jobs []model.DownloadJob) bool {
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// cancelActive asks the backend to stop every job still running and returns
// how many cancel requests failed
func cancelActive(core *app.Core, jobs []model.DownloadJob, logger zerolog.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	failed := 0
	for _, job := range jobs {
		if !job.Status.IsActive() {
			continue
		}
		if err := core.Cancel(ctx, job.ID); err != nil {
			failed++
			logger.Warn().Err(err).Str("download_id", job.ID).Msg("failed to cancel download")
		}
	}
	return failed
}

// summarize returns ErrDownloadsFailed naming every job that did not complete
func summarize(jobs []model.DownloadJob) error {
	var failed []string
	for _, job := range jobs {
		if job.Status != model.JobStatusCompleted {
			failed = append(failed, fmt.Sprintf("%s (%s)", job.GetDisplayTitle(), job.Reason))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDownloadsFailed, strings.Join(failed, ", "))
}

// progressWriter prints a job line whenever its rendering changes
type progressWriter struct {
	out    io.Writer
	styles styles
	last   map[string]string
}

func newProgressWriter(out io.Writer, s styles) *progressWriter {
	return &progressWriter{out: out, styles: s, last: make(map[string]string)}
}

func (w *progressWriter) write(jobs []model.DownloadJob) {
	for _, job := range jobs {
		line := w.styles.jobLine(job)
		if w.last[job.ID] == line {
			continue
		}
		w.last[job.ID] = line
		fmt.Fprintln(w.out, line)
	}
}
