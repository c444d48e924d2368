// Package metrics exposes Prometheus counters for the download core. A nil
// *Metrics is valid and records nothing, so components can run without it.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "softdl"

// Metrics holds the counters recorded by the orchestrator and subscriber
type Metrics struct {
	registry *prometheus.Registry

	notificationsTotal  *prometheus.CounterVec
	anomaliesTotal      *prometheus.CounterVec
	jobsStartedTotal    prometheus.Counter
	transitionsTotal    *prometheus.CounterVec
	streamInterruptions prometheus.Counter
}

// New creates the counters and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Backend notifications received, by channel.",
			},
			[]string{"channel"},
		),
		anomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_total",
				Help:      "Notifications discarded without affecting job state, by kind.",
			},
			[]string{"kind"},
		),
		jobsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Download jobs created.",
		}),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_transitions_total",
				Help:      "Job status transitions, by target status.",
			},
			[]string{"status"},
		),
		streamInterruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_interruptions_total",
			Help:      "Event stream interruptions observed by the subscriber.",
		}),
	}

	m.registry.MustRegister(
		m.notificationsTotal,
		m.anomaliesTotal,
		m.jobsStartedTotal,
		m.transitionsTotal,
		m.streamInterruptions,
	)
	return m
}

// Registry returns the registry holding the counters
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Notification counts a received notification
func (m *Metrics) Notification(channel string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel).Inc()
}

// Anomaly counts a discarded notification
func (m *Metrics) Anomaly(kind string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(kind).Inc()
}

// JobStarted counts a created job
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsStartedTotal.Inc()
}

// Transition counts a job entering status
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Inc()
}

// StreamInterrupted counts an event stream interruption
func (m *Metrics) StreamInterrupted() {
	if m == nil {
		return
	}
	m.streamInterruptions.Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
