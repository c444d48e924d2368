package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Wire protocol constants for the native backend process
const (
	CommandDownload = "download"
	CommandCancel   = "cancel"

	// MaxLineSize bounds a single JSON line read from the backend
	MaxLineSize = 1 << 20

	// StopGracePeriod is how long Close waits after closing stdin before killing
	StopGracePeriod = 3 * time.Second
)

// ProcessConfig describes how to launch the native backend
type ProcessConfig struct {
	Command string
	Args    []string
	Env     []string
}

// command is one JSON line written to the backend's stdin
type command struct {
	Cmd        string `json:"cmd"`
	DownloadID string `json:"download_id"`
	URL        string `json:"url,omitempty"`
}

// envelope is one JSON line read from the backend's stdout
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Process runs the native backend as a child process. Commands go to its
// stdin and notifications come back on stdout, one JSON object per line.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	subs    map[*stream]struct{}
	exited  bool
	exitErr error
	done    chan struct{}
}

// StartProcess launches the backend and begins reading its notifications
func StartProcess(ctx context.Context, cfg ProcessConfig, logger zerolog.Logger) (*Process, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("backend command is empty")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	cmd.Stderr = logger.With().Str("stream", "backend-stderr").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start backend %s: %w", cfg.Command, err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
		subs:   make(map[*stream]struct{}),
		done:   make(chan struct{}),
	}

	logger.Info().Str("command", cfg.Command).Int("pid", cmd.Process.Pid).Msg("backend process started")

	go p.readNotifications(stdout)

	return p, nil
}

// RequestDownload validates the link and sends a download command
func (p *Process) RequestDownload(_ context.Context, req Request) error {
	link := strings.TrimSpace(req.URL)
	if link == "" {
		return fmt.Errorf("%w: empty url", ErrRejected)
	}
	if _, err := url.Parse(link); err != nil {
		return fmt.Errorf("%w: invalid url: %v", ErrRejected, err)
	}

	if err := p.send(command{Cmd: CommandDownload, DownloadID: req.DownloadID, URL: link}); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

// CancelDownload sends a cancel command
func (p *Process) CancelDownload(_ context.Context, downloadID string) error {
	return p.send(command{Cmd: CommandCancel, DownloadID: downloadID})
}

// Subscribe opens a stream; it fails once the process has exited
func (p *Process) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return nil, fmt.Errorf("%w: %v", ErrBackendExited, p.exitErr)
	}

	var s *stream
	s = newStream(channels, func() {
		p.mu.Lock()
		delete(p.subs, s)
		p.mu.Unlock()
	})
	p.subs[s] = struct{}{}
	return s, nil
}

// Done is closed after the process exits and all subscriptions ended
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Close closes stdin so the backend can shut down, killing it after a grace period
func (p *Process) Close() error {
	p.writeMu.Lock()
	err := p.stdin.Close()
	p.writeMu.Unlock()

	select {
	case <-p.done:
	case <-time.After(StopGracePeriod):
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
	}
	return err
}

func (p *Process) send(c command) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	data = append(data, '\n')

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write to backend: %w", err)
	}
	return nil
}

// readNotifications fans stdout lines out to subscribers until the pipe closes
func (p *Process) readNotifications(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for scanner.Scan() {
		ev, ok := parseEnvelope(scanner.Bytes())
		if !ok {
			p.logger.Warn().Str("line", truncate(scanner.Text(), 200)).Msg("ignoring malformed backend line")
			continue
		}
		for _, s := range p.snapshotSubs() {
			s.deliver(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("backend stdout read failed")
	}

	waitErr := p.cmd.Wait()

	p.mu.Lock()
	p.exited = true
	p.exitErr = waitErr
	p.mu.Unlock()

	exitErr := fmt.Errorf("%w: %v", ErrBackendExited, waitErr)
	if waitErr == nil {
		exitErr = ErrBackendExited
	}
	for _, s := range p.snapshotSubs() {
		s.finish(exitErr)
	}

	p.logger.Info().AnErr("exit", waitErr).Msg("backend process exited")
	close(p.done)
}

func (p *Process) snapshotSubs() []*stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := make([]*stream, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	return subs
}

// parseEnvelope decodes one `{"event": ..., "payload": ...}` line
func parseEnvelope(line []byte) (Event, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Event{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Event{}, false
	}
	if env.Event == "" {
		return Event{}, false
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Event{Channel: env.Event, Payload: payload}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
