package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/soft-downloader/internal/backend"
	"github.com/ytget/soft-downloader/internal/metrics"
	"github.com/ytget/soft-downloader/internal/model"
)

const waitFor = 2 * time.Second

func startedOrchestrator(t *testing.T, lb *backend.Loopback, opts ...Option) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(lb, lb, opts...)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(o.Stop)
	return o
}

// counterValue sums every series of a counter family; it must not fail the
// test because it runs inside assert.Eventually
func counterValue(m *metrics.Metrics, name string) float64 {
	families, err := m.Registry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func jobStatus(o *Orchestrator, id string) model.JobStatus {
	job, _ := o.GetJob(id)
	return job.Status
}

func TestSubscriber_AppliesNotifications(t *testing.T) {
	lb := backend.NewLoopback()
	o := startedOrchestrator(t, lb)

	a := o.StartDownload(context.Background(), productA)
	b := o.StartDownload(context.Background(), productB)

	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": a.ID, "percentage": 40}))
	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": b.ID, "percentage": 70}))
	require.NoError(t, lb.Publish(backend.ChannelFinished, map[string]any{"download_id": a.ID}))
	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": a.ID, "percentage": 55}))
	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": "dl-unknown", "percentage": 1}))

	assert.Eventually(t, func() bool {
		return len(o.Anomalies()) == 2
	}, waitFor, 10*time.Millisecond)

	gotA, _ := o.GetJob(a.ID)
	gotB, _ := o.GetJob(b.ID)
	assert.Equal(t, model.JobStatusCompleted, gotA.Status)
	assert.Equal(t, 40.0, gotA.Progress.Percentage)
	assert.Equal(t, model.JobStatusInProgress, gotB.Status)
	assert.Equal(t, 70.0, gotB.Progress.Percentage)
	assert.Len(t, o.ListJobs(), 2)
}

func TestSubscriber_ResubscribesOnce(t *testing.T) {
	lb := backend.NewLoopback()
	m := metrics.New()
	o := startedOrchestrator(t, lb, WithMetrics(m))
	job := o.StartDownload(context.Background(), productA)

	lb.Disconnect(errors.New("bus reset"))

	assert.Eventually(t, func() bool {
		return lb.Subscribers() == 1 && counterValue(m, "softdl_stream_interruptions_total") == 1
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": job.ID, "percentage": 20}))
	assert.Eventually(t, func() bool {
		return jobStatus(o, job.ID) == model.JobStatusInProgress
	}, waitFor, 10*time.Millisecond)

	// the budget is restored after a successful resubscription
	lb.Disconnect(errors.New("bus reset again"))
	assert.Eventually(t, func() bool {
		return lb.Subscribers() == 1 && counterValue(m, "softdl_stream_interruptions_total") == 2
	}, waitFor, 10*time.Millisecond)

	select {
	case <-o.Done():
		t.Fatal("subscriber ended after successful resubscription")
	default:
	}
	assert.Equal(t, model.JobStatusInProgress, jobStatus(o, job.ID))
}

func TestSubscriber_StreamLost(t *testing.T) {
	lb := backend.NewLoopback()
	o := startedOrchestrator(t, lb)

	requested := o.StartDownload(context.Background(), productA)
	running := o.StartDownload(context.Background(), productB)
	finished := o.StartDownload(context.Background(), productA)

	require.NoError(t, lb.Publish(backend.ChannelProgress, map[string]any{"download_id": running.ID, "percentage": 50}))
	require.NoError(t, lb.Publish(backend.ChannelFinished, map[string]any{"download_id": finished.ID}))
	assert.Eventually(t, func() bool {
		return jobStatus(o, finished.ID) == model.JobStatusCompleted &&
			jobStatus(o, running.ID) == model.JobStatusInProgress
	}, waitFor, 10*time.Millisecond)

	lb.FailSubscriptions(errors.New("broker unreachable"))
	lb.Disconnect(errors.New("connection reset"))

	select {
	case <-o.Done():
	case <-time.After(waitFor):
		t.Fatal("subscriber did not end")
	}

	assert.ErrorIs(t, o.Err(), ErrStreamLost)
	assert.ErrorIs(t, o.Err(), ErrEventStreamInterrupted)

	for _, id := range []string{requested.ID, running.ID} {
		job, _ := o.GetJob(id)
		assert.Equal(t, model.JobStatusFailed, job.Status)
		assert.Equal(t, model.ReasonStreamLost, job.Reason)
	}
	assert.Equal(t, model.JobStatusCompleted, jobStatus(o, finished.ID))
}

func TestSubscriber_StreamLostRefusesNewDownloads(t *testing.T) {
	lb := backend.NewLoopback()
	o := startedOrchestrator(t, lb)

	lb.FailSubscriptions(errors.New("broker unreachable"))
	lb.Disconnect(errors.New("connection reset"))
	<-o.Done()
	require.ErrorIs(t, o.Err(), ErrStreamLost)

	job := o.StartDownload(context.Background(), productA)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, model.ReasonStreamLost, job.Reason)
	assert.Empty(t, lb.Requests())

	got, ok := o.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, model.JobStatusFailed, got.Status)
}

func TestSubscriber_DrainsBufferedEventsOnDisconnect(t *testing.T) {
	lb := backend.NewLoopback()
	o := NewOrchestrator(lb, lb)
	job := o.StartDownload(context.Background(), productA)

	require.NoError(t, o.Start(context.Background()))
	defer o.Stop()

	lb.FailSubscriptions(errors.New("gone"))
	require.NoError(t, lb.Publish(backend.ChannelFinished, map[string]any{"download_id": job.ID}))
	lb.Disconnect(errors.New("gone"))

	<-o.Done()
	assert.Equal(t, model.JobStatusCompleted, jobStatus(o, job.ID))
}

func TestOrchestrator_StartStop(t *testing.T) {
	lb := backend.NewLoopback()
	o := NewOrchestrator(lb, lb)

	o.Stop()

	require.NoError(t, o.Start(context.Background()))
	assert.ErrorIs(t, o.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, lb.Subscribers())

	o.Stop()
	<-o.Done()
	assert.NoError(t, o.Err())
	assert.Equal(t, 0, lb.Subscribers())
}

func TestOrchestrator_StartFails(t *testing.T) {
	lb := backend.NewLoopback()
	lb.FailSubscriptions(errors.New("refused"))

	o := NewOrchestrator(lb, lb)
	assert.Error(t, o.Start(context.Background()))

	assert.Error(t, NewOrchestrator(lb, nil).Start(context.Background()))
}

func TestOrchestrator_SimulatedBackend(t *testing.T) {
	lb := backend.NewLoopback()
	lb.Simulate(backend.Simulation{FileSize: 1 << 20, Steps: 3, Interval: 5 * time.Millisecond})
	o := startedOrchestrator(t, lb)

	job := o.StartDownload(context.Background(), productA)

	assert.Eventually(t, func() bool {
		return jobStatus(o, job.ID) == model.JobStatusCompleted
	}, waitFor, 10*time.Millisecond)

	got, _ := o.GetJob(job.ID)
	require.NotNil(t, got.Progress)
	assert.Equal(t, 100.0, got.Progress.Percentage)
	assert.Equal(t, uint64(1<<20), got.Progress.Transferred)
	assert.Empty(t, o.Anomalies())
}
