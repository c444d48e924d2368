package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ytget/soft-downloader/internal/backend"
	"github.com/ytget/soft-downloader/internal/metrics"
	"github.com/ytget/soft-downloader/internal/model"
)

// JobIDPrefix is prepended to every generated download id
const JobIDPrefix = "dl-"

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger used for transitions and anomalies
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics records counters on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the job table. Every mutation happens under mu and is
// published to update listeners after the lock is released.
type Orchestrator struct {
	requester backend.Requester
	bus       backend.Bus
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu        sync.Mutex
	jobs      map[string]*model.DownloadJob
	order     []string
	progress  map[string]uint64 // id -> sequence number of its latest applied progress
	seq       uint64
	anomalies []Anomaly
	lost      error // set once the notification stream is lost for good

	listenersMu  sync.Mutex
	listeners    map[int]func(model.DownloadJob)
	nextListener int

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// NewOrchestrator creates an orchestrator issuing requests to requester and
// listening for notifications on bus
func NewOrchestrator(requester backend.Requester, bus backend.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		requester: requester,
		bus:       bus,
		logger:    zerolog.Nop(),
		now:       time.Now,
		jobs:      make(map[string]*model.DownloadJob),
		progress:  make(map[string]uint64),
		listeners: make(map[int]func(model.DownloadJob)),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnUpdate registers fn for job changes and returns a func that removes it
func (o *Orchestrator) OnUpdate(fn func(model.DownloadJob)) func() {
	o.listenersMu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.listenersMu.Unlock()

	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

// StartDownload inserts a Requested job and asks the backend to fetch the
// product. A synchronous rejection leaves the returned job Failed with
// ReasonRequestRejected. Calling it twice for one product creates two jobs.
func (o *Orchestrator) StartDownload(ctx context.Context, product model.Product) model.DownloadJob {
	now := o.now()
	job := &model.DownloadJob{
		ID:        generateJobID(),
		Product:   product,
		Status:    model.JobStatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.order = append(o.order, job.ID)
	lost := o.lost
	if lost != nil {
		o.finishLocked(job, model.JobStatusFailed, model.ReasonStreamLost, ErrStreamLost.Error())
	}
	created := job.Clone()
	o.mu.Unlock()

	o.metrics.JobStarted()
	if lost != nil {
		o.metrics.Transition(model.JobStatusFailed.String())
		o.logger.Warn().Str("download_id", job.ID).Str("product", product.Name).Msg("notification stream lost, download not requested")
		o.notifyUpdate(created)
		return created
	}

	o.metrics.Transition(model.JobStatusRequested.String())
	o.logger.Debug().Str("download_id", job.ID).Str("product", product.Name).Msg("download requested")
	o.notifyUpdate(created)

	err := o.requester.RequestDownload(ctx, backend.Request{DownloadID: job.ID, URL: product.DownloadLink})
	if err == nil {
		if current, ok := o.GetJob(job.ID); ok {
			return current
		}
		return created
	}

	o.logger.Warn().Err(err).Str("download_id", job.ID).Str("url", product.DownloadLink).Msg("backend rejected download request")

	o.mu.Lock()
	if job.Status.IsTerminal() {
		current := job.Clone()
		o.mu.Unlock()
		return current
	}
	o.finishLocked(job, model.JobStatusFailed, model.ReasonRequestRejected, err.Error())
	failed := job.Clone()
	o.mu.Unlock()

	o.metrics.Transition(model.JobStatusFailed.String())
	o.notifyUpdate(failed)
	return failed
}

// GetJob returns a copy of the job with id
func (o *Orchestrator) GetJob(id string) (model.DownloadJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, exists := o.jobs[id]
	if !exists {
		return model.DownloadJob{}, false
	}
	return job.Clone(), true
}

// ListJobs returns copies of all jobs in creation order
func (o *Orchestrator) ListJobs() []model.DownloadJob {
	o.mu.Lock()
	defer o.mu.Unlock()

	jobs := make([]model.DownloadJob, 0, len(o.order))
	for _, id := range o.order {
		jobs = append(jobs, o.jobs[id].Clone())
	}
	return jobs
}

// CancelDownload marks an active job Failed with ReasonCancelled and asks the
// backend to stop it. A completion that arrives later still wins.
func (o *Orchestrator) CancelDownload(ctx context.Context, id string) error {
	o.mu.Lock()
	job, exists := o.jobs[id]
	if !exists {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Status.IsActive() {
		status := job.Status
		o.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobNotActive, id, status)
	}
	o.finishLocked(job, model.JobStatusFailed, model.ReasonCancelled, "")
	cancelled := job.Clone()
	o.mu.Unlock()

	o.metrics.Transition(model.JobStatusFailed.String())
	o.logger.Info().Str("download_id", id).Msg("download cancelled")
	o.notifyUpdate(cancelled)

	if err := o.requester.CancelDownload(ctx, id); err != nil {
		o.logger.Warn().Err(err).Str("download_id", id).Msg("backend cancel failed")
		return fmt.Errorf("failed to cancel %s: %w", id, err)
	}
	return nil
}

// FailOpenJobs fails every non-terminal job with reason and returns how many changed
func (o *Orchestrator) FailOpenJobs(reason model.FailureReason) int {
	o.mu.Lock()
	changed := o.failOpenLocked(reason)
	o.mu.Unlock()

	o.publishFailed(changed)
	return len(changed)
}

// markStreamLost records err as the end of the notification stream and fails
// open jobs in the same step, so no later request slips in untracked
func (o *Orchestrator) markStreamLost(err error) int {
	o.mu.Lock()
	o.lost = err
	changed := o.failOpenLocked(model.ReasonStreamLost)
	o.mu.Unlock()

	o.publishFailed(changed)
	return len(changed)
}

func (o *Orchestrator) failOpenLocked(reason model.FailureReason) []model.DownloadJob {
	var changed []model.DownloadJob
	for _, id := range o.order {
		job := o.jobs[id]
		if job.Status.IsTerminal() {
			continue
		}
		o.finishLocked(job, model.JobStatusFailed, reason, "")
		changed = append(changed, job.Clone())
	}
	return changed
}

func (o *Orchestrator) publishFailed(jobs []model.DownloadJob) {
	for _, job := range jobs {
		o.metrics.Transition(model.JobStatusFailed.String())
		o.notifyUpdate(job)
	}
}

// PruneTerminal removes Completed and Failed jobs and returns how many were removed
func (o *Orchestrator) PruneTerminal() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.order[:0]
	removed := 0
	for _, id := range o.order {
		if o.jobs[id].Status.IsTerminal() {
			delete(o.jobs, id)
			delete(o.progress, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	clear(o.order[len(kept):])
	o.order = kept
	return removed
}

// Anomalies returns the retained anomaly history, oldest first
func (o *Orchestrator) Anomalies() []Anomaly {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Anomaly(nil), o.anomalies...)
}

// ApplyProgress replaces the progress of an active job and moves it to
// InProgress. Unknown ids and terminal jobs are recorded as anomalies.
func (o *Orchestrator) ApplyProgress(snap model.ProgressSnapshot) error {
	o.mu.Lock()
	job, exists := o.jobs[snap.DownloadID]
	if !exists {
		o.recordAnomalyLocked(AnomalyUnknownJob, snap.DownloadID, backend.ChannelProgress, "no job with this id")
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, snap.DownloadID)
	}
	if job.Status.IsTerminal() {
		o.recordAnomalyLocked(AnomalyStaleNotification, snap.DownloadID, backend.ChannelProgress, "job is "+job.Status.String())
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobFinished, snap.DownloadID)
	}

	p := snap
	job.Progress = &p
	entered := job.Status != model.JobStatusInProgress
	job.Status = model.JobStatusInProgress
	job.UpdatedAt = o.now()
	o.seq++
	o.progress[job.ID] = o.seq
	updated := job.Clone()
	o.mu.Unlock()

	if entered {
		o.metrics.Transition(model.JobStatusInProgress.String())
		o.logger.Debug().Str("download_id", updated.ID).Msg("download in progress")
	}
	o.notifyUpdate(updated)
	return nil
}

// ApplyCompletion marks the identified job Completed. Without an id the job
// that most recently received progress while InProgress is chosen; this is a
// guess, and with no candidate the completion is discarded. A cancelled job
// is reconciled to Completed.
func (o *Orchestrator) ApplyCompletion(c model.Completion) error {
	o.mu.Lock()
	var job *model.DownloadJob
	if c.HasID {
		job = o.jobs[c.DownloadID]
		if job == nil {
			o.recordAnomalyLocked(AnomalyUnknownJob, c.DownloadID, backend.ChannelFinished, "no job with this id")
			o.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownJob, c.DownloadID)
		}
	} else {
		job = o.latestInProgressLocked()
		if job == nil {
			o.recordAnomalyLocked(AnomalyAmbiguousCompletion, "", backend.ChannelFinished, "no job in progress")
			o.mu.Unlock()
			return fmt.Errorf("%w: completion without download_id", ErrUnknownJob)
		}
		o.logger.Warn().Str("download_id", job.ID).Msg("completion without download_id attributed to most recent job in progress")
	}

	if !completable(job) {
		o.recordAnomalyLocked(AnomalyStaleNotification, job.ID, backend.ChannelFinished, "job is "+job.Status.String())
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobFinished, job.ID)
	}

	reconciled := job.Reason == model.ReasonCancelled
	o.finishLocked(job, model.JobStatusCompleted, model.ReasonNone, "")
	completed := job.Clone()
	o.mu.Unlock()

	o.metrics.Transition(model.JobStatusCompleted.String())
	o.logger.Info().Str("download_id", completed.ID).Bool("after_cancel", reconciled).Msg("download completed")
	o.notifyUpdate(completed)
	return nil
}

// ApplyFailure marks an active job Failed with ReasonBackendError
func (o *Orchestrator) ApplyFailure(f model.Failure) error {
	o.mu.Lock()
	job, exists := o.jobs[f.DownloadID]
	if !exists {
		o.recordAnomalyLocked(AnomalyUnknownJob, f.DownloadID, backend.ChannelFailed, "no job with this id")
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, f.DownloadID)
	}
	if job.Status.IsTerminal() {
		o.recordAnomalyLocked(AnomalyStaleNotification, f.DownloadID, backend.ChannelFailed, "job is "+job.Status.String())
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobFinished, f.DownloadID)
	}

	o.finishLocked(job, model.JobStatusFailed, model.ReasonBackendError, f.Message)
	failed := job.Clone()
	o.mu.Unlock()

	o.metrics.Transition(model.JobStatusFailed.String())
	o.logger.Warn().Str("download_id", failed.ID).Str("error", f.Message).Msg("backend reported download failure")
	o.notifyUpdate(failed)
	return nil
}

// HandleEvent decodes a raw notification and applies it. Nothing it receives
// can make it fail; rejected notifications end up in Anomalies.
func (o *Orchestrator) HandleEvent(ev backend.Event) {
	o.metrics.Notification(ev.Channel)

	var err error
	switch ev.Channel {
	case backend.ChannelProgress:
		var snap model.ProgressSnapshot
		if snap, err = DecodeProgress(ev.Payload); err == nil {
			err = o.ApplyProgress(snap)
		}
	case backend.ChannelFinished:
		var c model.Completion
		if c, err = DecodeCompletion(ev.Payload); err == nil {
			err = o.ApplyCompletion(c)
		}
	case backend.ChannelFailed:
		var f model.Failure
		if f, err = DecodeFailure(ev.Payload); err == nil {
			err = o.ApplyFailure(f)
		}
	default:
		o.recordAnomaly(AnomalyUnknownChannel, "", ev.Channel, "unexpected channel")
		return
	}

	if errors.Is(err, ErrMalformedPayload) {
		o.recordAnomaly(AnomalyMalformedPayload, "", ev.Channel, err.Error())
	}
}

// completable reports whether a completion may still move job to Completed
func completable(job *model.DownloadJob) bool {
	if job.Status.IsActive() {
		return true
	}
	return job.Status == model.JobStatusFailed && job.Reason == model.ReasonCancelled
}

// latestInProgressLocked returns the InProgress job with the most recent progress
func (o *Orchestrator) latestInProgressLocked() *model.DownloadJob {
	var (
		best    *model.DownloadJob
		bestSeq uint64
	)
	for _, id := range o.order {
		job := o.jobs[id]
		if job.Status != model.JobStatusInProgress {
			continue
		}
		if s := o.progress[id]; best == nil || s > bestSeq {
			best, bestSeq = job, s
		}
	}
	return best
}

func (o *Orchestrator) finishLocked(job *model.DownloadJob, status model.JobStatus, reason model.FailureReason, msg string) {
	now := o.now()
	job.Status = status
	job.Reason = reason
	if msg != "" {
		job.LastError = msg
	}
	job.UpdatedAt = now
	job.FinishedAt = now
}

func (o *Orchestrator) recordAnomaly(kind AnomalyKind, id, channel, detail string) {
	o.mu.Lock()
	o.recordAnomalyLocked(kind, id, channel, detail)
	o.mu.Unlock()
}

func (o *Orchestrator) recordAnomalyLocked(kind AnomalyKind, id, channel, detail string) {
	a := Anomaly{Kind: kind, DownloadID: id, Channel: channel, Detail: detail, At: o.now()}
	if len(o.anomalies) >= maxAnomalies {
		copy(o.anomalies, o.anomalies[1:])
		o.anomalies = o.anomalies[:len(o.anomalies)-1]
	}
	o.anomalies = append(o.anomalies, a)

	o.metrics.Anomaly(string(kind))
	o.logger.Warn().
		Str("kind", string(kind)).
		Str("download_id", id).
		Str("channel", channel).
		Str("detail", detail).
		Msg("notification discarded")
}

// notifyUpdate calls every registered listener with job
func (o *Orchestrator) notifyUpdate(job model.DownloadJob) {
	o.listenersMu.Lock()
	fns := make([]func(model.DownloadJob), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.listenersMu.Unlock()

	for _, fn := range fns {
		fn(job)
	}
}

// generateJobID generates a unique job ID using UUID v7 for time ordering
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return JobIDPrefix + uuid.NewString()
	}
	return JobIDPrefix + id.String()
}
