package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ytget/soft-downloader/internal/backend"
	"github.com/ytget/soft-downloader/internal/metrics"
	"github.com/ytget/soft-downloader/internal/model"
)

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) RequestDownload(ctx context.Context, req backend.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRequester) CancelDownload(ctx context.Context, downloadID string) error {
	args := m.Called(ctx, downloadID)
	return args.Error(0)
}

func acceptingRequester() *mockRequester {
	m := &mockRequester{}
	m.On("RequestDownload", mock.Anything, mock.Anything).Return(nil)
	m.On("CancelDownload", mock.Anything, mock.Anything).Return(nil)
	return m
}

var (
	productA = model.Product{Name: "Alfred", DownloadLink: "https://cdn.example.com/alfred.dmg"}
	productB = model.Product{Name: "Bartender", DownloadLink: "https://cdn.example.com/bartender.dmg"}
)

func TestStartDownload_UniqueIDs(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		job := o.StartDownload(context.Background(), productA)
		assert.True(t, strings.HasPrefix(job.ID, JobIDPrefix))
		assert.False(t, seen[job.ID], "duplicate id %s", job.ID)
		seen[job.ID] = true
		assert.Equal(t, model.JobStatusRequested, job.Status)
	}
	assert.Len(t, o.ListJobs(), 200)
}

func TestStartDownload_SameProductTwice(t *testing.T) {
	req := acceptingRequester()
	o := NewOrchestrator(req, nil)

	first := o.StartDownload(context.Background(), productA)
	second := o.StartDownload(context.Background(), productA)

	assert.NotEqual(t, first.ID, second.ID)
	req.AssertNumberOfCalls(t, "RequestDownload", 2)
	req.AssertCalled(t, "RequestDownload", mock.Anything, backend.Request{DownloadID: first.ID, URL: productA.DownloadLink})
}

func TestStartDownload_Rejected(t *testing.T) {
	req := &mockRequester{}
	req.On("RequestDownload", mock.Anything, mock.Anything).Return(backend.ErrRejected)
	o := NewOrchestrator(req, nil)

	job := o.StartDownload(context.Background(), model.Product{Name: "Broken", DownloadLink: "::"})

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, model.ReasonRequestRejected, job.Reason)
	assert.NotEmpty(t, job.LastError)
	assert.False(t, job.FinishedAt.IsZero())

	stored, ok := o.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, job, stored)
}

func TestStartDownload_IDAllocatedBeforeRequest(t *testing.T) {
	req := &mockRequester{}
	o := NewOrchestrator(req, nil)

	var seenDuringRequest model.DownloadJob
	req.On("RequestDownload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(1).(backend.Request)
		job, ok := o.GetJob(r.DownloadID)
		require.True(t, ok)
		seenDuringRequest = job
	}).Return(nil)

	job := o.StartDownload(context.Background(), productA)
	assert.Equal(t, job.ID, seenDuringRequest.ID)
	assert.Equal(t, model.JobStatusRequested, seenDuringRequest.Status)
}

func TestApplyProgress_UnknownJob(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)

	err := o.ApplyProgress(model.ProgressSnapshot{DownloadID: "stale", Percentage: 10})
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Empty(t, o.ListJobs())

	anomalies := o.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyUnknownJob, anomalies[0].Kind)
	assert.Equal(t, "stale", anomalies[0].DownloadID)
	assert.Equal(t, backend.ChannelProgress, anomalies[0].Channel)
}

func TestApplyProgress_NoCrossJobInterference(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	a := o.StartDownload(context.Background(), productA)
	b := o.StartDownload(context.Background(), productB)

	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: a.ID, Percentage: 40}))
	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: b.ID, Percentage: 70}))

	gotA, _ := o.GetJob(a.ID)
	gotB, _ := o.GetJob(b.ID)
	assert.Equal(t, 40.0, gotA.Progress.Percentage)
	assert.Equal(t, 70.0, gotB.Progress.Percentage)
	assert.Equal(t, model.JobStatusInProgress, gotA.Status)
	assert.Equal(t, model.JobStatusInProgress, gotB.Status)
}

func TestApplyCompletion_StaleProgressIgnored(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	job := o.StartDownload(context.Background(), productA)

	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: 90}))
	require.NoError(t, o.ApplyCompletion(model.Completion{DownloadID: job.ID, HasID: true}))

	err := o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: 55})
	assert.ErrorIs(t, err, ErrJobFinished)

	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 90.0, got.Progress.Percentage)
}

func TestTerminalJobsIgnoreProgress(t *testing.T) {
	tests := []struct {
		name   string
		finish func(o *Orchestrator, id string)
		status model.JobStatus
	}{
		{
			name:   "completed",
			finish: func(o *Orchestrator, id string) { _ = o.ApplyCompletion(model.Completion{DownloadID: id, HasID: true}) },
			status: model.JobStatusCompleted,
		},
		{
			name:   "backend error",
			finish: func(o *Orchestrator, id string) { _ = o.ApplyFailure(model.Failure{DownloadID: id, Message: "disk full"}) },
			status: model.JobStatusFailed,
		},
		{
			name:   "cancelled",
			finish: func(o *Orchestrator, id string) { _ = o.CancelDownload(context.Background(), id) },
			status: model.JobStatusFailed,
		},
		{
			name:   "stream lost",
			finish: func(o *Orchestrator, _ string) { o.FailOpenJobs(model.ReasonStreamLost) },
			status: model.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(acceptingRequester(), nil)
			job := o.StartDownload(context.Background(), productA)
			require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: 10}))
			tt.finish(o, job.ID)

			before, _ := o.GetJob(job.ID)
			for _, pct := range []float64{20, 55, 100} {
				_ = o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: pct})
			}
			after, _ := o.GetJob(job.ID)

			assert.Equal(t, tt.status, after.Status)
			assert.Equal(t, before.Progress, after.Progress)
			assert.Equal(t, before.Status, after.Status)
		})
	}
}

func TestApplyCompletion_WithoutID(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	a := o.StartDownload(context.Background(), productA)
	b := o.StartDownload(context.Background(), productB)

	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: b.ID, Percentage: 10}))
	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: a.ID, Percentage: 10}))

	require.NoError(t, o.ApplyCompletion(model.Completion{}))
	gotA, _ := o.GetJob(a.ID)
	gotB, _ := o.GetJob(b.ID)
	assert.Equal(t, model.JobStatusCompleted, gotA.Status)
	assert.Equal(t, model.JobStatusInProgress, gotB.Status)

	require.NoError(t, o.ApplyCompletion(model.Completion{}))
	gotB, _ = o.GetJob(b.ID)
	assert.Equal(t, model.JobStatusCompleted, gotB.Status)

	err := o.ApplyCompletion(model.Completion{})
	assert.ErrorIs(t, err, ErrUnknownJob)
	anomalies := o.Anomalies()
	require.NotEmpty(t, anomalies)
	assert.Equal(t, AnomalyAmbiguousCompletion, anomalies[len(anomalies)-1].Kind)
}

func TestApplyCompletion_RequestedJobNeedsID(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	job := o.StartDownload(context.Background(), productA)

	assert.ErrorIs(t, o.ApplyCompletion(model.Completion{}), ErrUnknownJob)

	require.NoError(t, o.ApplyCompletion(model.Completion{DownloadID: job.ID, HasID: true}))
	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Nil(t, got.Progress)
}

func TestApplyCompletion_UnknownID(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	err := o.ApplyCompletion(model.Completion{DownloadID: "dl-gone", HasID: true})
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Empty(t, o.ListJobs())
}

func TestCancelDownload(t *testing.T) {
	req := acceptingRequester()
	o := NewOrchestrator(req, nil)
	job := o.StartDownload(context.Background(), productA)

	require.NoError(t, o.CancelDownload(context.Background(), job.ID))
	req.AssertCalled(t, "CancelDownload", mock.Anything, job.ID)

	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, model.ReasonCancelled, got.Reason)

	assert.ErrorIs(t, o.CancelDownload(context.Background(), job.ID), ErrJobNotActive)
	assert.ErrorIs(t, o.CancelDownload(context.Background(), "dl-missing"), ErrJobNotFound)

	// the backend finished before it saw the cancel
	require.NoError(t, o.ApplyCompletion(model.Completion{DownloadID: job.ID, HasID: true}))
	got, _ = o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, model.ReasonNone, got.Reason)
}

func TestCancelDownload_BackendError(t *testing.T) {
	req := &mockRequester{}
	req.On("RequestDownload", mock.Anything, mock.Anything).Return(nil)
	req.On("CancelDownload", mock.Anything, mock.Anything).Return(errors.New("pipe closed"))
	o := NewOrchestrator(req, nil)
	job := o.StartDownload(context.Background(), productA)

	assert.Error(t, o.CancelDownload(context.Background(), job.ID))

	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.ReasonCancelled, got.Reason)
}

func TestApplyFailure(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	job := o.StartDownload(context.Background(), productA)

	require.NoError(t, o.ApplyFailure(model.Failure{DownloadID: job.ID, Message: "disk full"}))
	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, model.ReasonBackendError, got.Reason)
	assert.Equal(t, "disk full", got.LastError)

	assert.ErrorIs(t, o.ApplyFailure(model.Failure{DownloadID: job.ID}), ErrJobFinished)
	assert.ErrorIs(t, o.ApplyFailure(model.Failure{DownloadID: "nope"}), ErrUnknownJob)
}

func TestFailOpenJobsAndPrune(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	done := o.StartDownload(context.Background(), productA)
	open := o.StartDownload(context.Background(), productB)
	running := o.StartDownload(context.Background(), productA)

	require.NoError(t, o.ApplyCompletion(model.Completion{DownloadID: done.ID, HasID: true}))
	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: running.ID, Percentage: 5}))

	assert.Equal(t, 2, o.FailOpenJobs(model.ReasonStreamLost))
	for _, id := range []string{open.ID, running.ID} {
		got, _ := o.GetJob(id)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, model.ReasonStreamLost, got.Reason)
	}
	got, _ := o.GetJob(done.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)

	fresh := o.StartDownload(context.Background(), productB)
	assert.Equal(t, 3, o.PruneTerminal())

	jobs := o.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, fresh.ID, jobs[0].ID)
}

func TestListJobs_ReturnsCopies(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	job := o.StartDownload(context.Background(), productA)
	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: 30}))

	jobs := o.ListJobs()
	jobs[0].Status = model.JobStatusCompleted
	jobs[0].Progress.Percentage = 99

	got, _ := o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusInProgress, got.Status)
	assert.Equal(t, 30.0, got.Progress.Percentage)
}

func TestOnUpdate(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)

	var mu sync.Mutex
	var statuses []model.JobStatus
	unsubscribe := o.OnUpdate(func(job model.DownloadJob) {
		mu.Lock()
		statuses = append(statuses, job.Status)
		mu.Unlock()
	})

	job := o.StartDownload(context.Background(), productA)
	require.NoError(t, o.ApplyProgress(model.ProgressSnapshot{DownloadID: job.ID, Percentage: 30}))
	require.NoError(t, o.ApplyCompletion(model.Completion{DownloadID: job.ID, HasID: true}))

	unsubscribe()
	o.StartDownload(context.Background(), productB)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.JobStatus{
		model.JobStatusRequested,
		model.JobStatusInProgress,
		model.JobStatusCompleted,
	}, statuses)
}

func TestHandleEvent(t *testing.T) {
	m := metrics.New()
	o := NewOrchestrator(acceptingRequester(), nil, WithMetrics(m))
	job := o.StartDownload(context.Background(), productA)

	o.HandleEvent(backend.Event{Channel: backend.ChannelProgress, Payload: []byte(`{"download_id":"` + job.ID + `","filesize":100,"transfered":25,"transfer_rate":10,"percentage":25}`)})
	got, _ := o.GetJob(job.ID)
	require.NotNil(t, got.Progress)
	assert.Equal(t, uint64(25), got.Progress.Transferred)

	o.HandleEvent(backend.Event{Channel: backend.ChannelProgress, Payload: []byte(`{"download_id":"x","percentage":-1}`)})
	o.HandleEvent(backend.Event{Channel: "SOMETHING_ELSE", Payload: []byte(`{}`)})
	o.HandleEvent(backend.Event{Channel: backend.ChannelFinished, Payload: []byte(`null`)})

	got, _ = o.GetJob(job.ID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)

	kinds := make([]AnomalyKind, 0)
	for _, a := range o.Anomalies() {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []AnomalyKind{AnomalyMalformedPayload, AnomalyUnknownChannel}, kinds)
}

func TestAnomaliesAreBounded(t *testing.T) {
	o := NewOrchestrator(acceptingRequester(), nil)
	for i := 0; i < maxAnomalies+25; i++ {
		_ = o.ApplyProgress(model.ProgressSnapshot{DownloadID: "ghost"})
	}
	assert.Len(t, o.Anomalies(), maxAnomalies)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrchestrator(acceptingRequester(), nil, WithClock(func() time.Time { return fixed }))

	job := o.StartDownload(context.Background(), productA)
	assert.Equal(t, fixed, job.CreatedAt)
	assert.Equal(t, fixed, job.UpdatedAt)
}
