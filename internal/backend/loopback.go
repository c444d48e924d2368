package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Simulation configures the transfers a Loopback fakes for accepted requests
type Simulation struct {
	FileSize uint64        // bytes per simulated file
	Steps    int           // progress notifications before the finish
	Interval time.Duration // delay between notifications
}

// DefaultSimulation returns a short transfer suitable for demos
func DefaultSimulation() Simulation {
	return Simulation{
		FileSize: 64 << 20,
		Steps:    20,
		Interval: 250 * time.Millisecond,
	}
}

// Loopback is an in-process backend: a bus plus requester living in the
// client. Tests drive it directly; demo mode lets it simulate transfers.
type Loopback struct {
	mu           sync.Mutex
	subs         map[*stream]struct{}
	subscribeErr error
	rejectErr    error
	requests     []Request
	cancels      []string
	simulation   *Simulation
	running      map[string]context.CancelFunc
}

// NewLoopback creates an idle loopback backend
func NewLoopback() *Loopback {
	return &Loopback{
		subs:    make(map[*stream]struct{}),
		running: make(map[string]context.CancelFunc),
	}
}

// Simulate makes every accepted request produce progress and a finish notification
func (l *Loopback) Simulate(sim Simulation) {
	def := DefaultSimulation()
	if sim.Steps < 1 {
		sim.Steps = 1
	}
	if sim.FileSize == 0 {
		sim.FileSize = def.FileSize
	}
	if sim.Interval <= 0 {
		sim.Interval = def.Interval
	}
	l.mu.Lock()
	l.simulation = &sim
	l.mu.Unlock()
}

// Subscribe opens a stream for channels (all channels when none are given)
func (l *Loopback) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subscribeErr != nil {
		return nil, l.subscribeErr
	}

	var s *stream
	s = newStream(channels, func() {
		l.mu.Lock()
		delete(l.subs, s)
		l.mu.Unlock()
	})
	l.subs[s] = struct{}{}
	return s, nil
}

// FailSubscriptions makes subsequent Subscribe calls return err; nil restores them
func (l *Loopback) FailSubscriptions(err error) {
	l.mu.Lock()
	l.subscribeErr = err
	l.mu.Unlock()
}

// Disconnect ends every open subscription with err
func (l *Loopback) Disconnect(err error) {
	for _, s := range l.snapshotSubs() {
		s.finish(err)
	}
}

// Subscribers returns the number of open subscriptions
func (l *Loopback) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Publish marshals payload to JSON and delivers it on channel
func (l *Loopback) Publish(channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", channel, err)
	}
	l.PublishRaw(channel, data)
	return nil
}

// PublishRaw delivers payload bytes unchanged on channel
func (l *Loopback) PublishRaw(channel string, payload []byte) {
	ev := Event{Channel: channel, Payload: json.RawMessage(payload)}
	for _, s := range l.snapshotSubs() {
		s.deliver(ev)
	}
}

// RejectRequests makes subsequent requests fail with err; nil accepts them again
func (l *Loopback) RejectRequests(err error) {
	l.mu.Lock()
	l.rejectErr = err
	l.mu.Unlock()
}

// RequestDownload records the request, rejecting empty links and when told to
func (l *Loopback) RequestDownload(_ context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: empty url", ErrRejected)
	}

	l.mu.Lock()
	if l.rejectErr != nil {
		err := l.rejectErr
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	l.requests = append(l.requests, req)
	sim := l.simulation
	var ctx context.Context
	if sim != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		l.running[req.DownloadID] = cancel
	}
	l.mu.Unlock()

	if sim != nil {
		go l.simulate(ctx, req.DownloadID, *sim)
	}
	return nil
}

// CancelDownload records the cancel and stops a simulated transfer
func (l *Loopback) CancelDownload(_ context.Context, downloadID string) error {
	l.mu.Lock()
	l.cancels = append(l.cancels, downloadID)
	cancel, ok := l.running[downloadID]
	delete(l.running, downloadID)
	l.mu.Unlock()

	if ok {
		cancel()
	}
	return nil
}

// Requests returns the accepted requests in arrival order
func (l *Loopback) Requests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Request(nil), l.requests...)
}

// Cancels returns the cancelled download ids in arrival order
func (l *Loopback) Cancels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.cancels...)
}

func (l *Loopback) snapshotSubs() []*stream {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := make([]*stream, 0, len(l.subs))
	for s := range l.subs {
		subs = append(subs, s)
	}
	return subs
}

// simulate mirrors the native backend: periodic progress, then a finish once at 100%
func (l *Loopback) simulate(ctx context.Context, id string, sim Simulation) {
	defer func() {
		l.mu.Lock()
		delete(l.running, id)
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(sim.Interval)
	defer ticker.Stop()

	step := sim.FileSize / uint64(sim.Steps)
	rate := float64(step) / sim.Interval.Seconds()

	for i := 1; i <= sim.Steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		transferred := step * uint64(i)
		if i == sim.Steps {
			transferred = sim.FileSize
		}
		_ = l.Publish(ChannelProgress, map[string]any{
			"download_id":   id,
			"filesize":      sim.FileSize,
			"transferred":   transferred,
			"transfer_rate": rate,
			"percentage":    float64(transferred*100) / float64(sim.FileSize),
		})
	}

	_ = l.Publish(ChannelFinished, map[string]any{"download_id": id})
}
