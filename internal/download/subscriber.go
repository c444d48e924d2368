package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytget/soft-downloader/internal/backend"
)

// errSubscriptionClosed stands in for a nil Err when a stream ends without a reason
var errSubscriptionClosed = errors.New("subscription closed")

// Start subscribes to the backend channels and runs the subscriber until ctx
// is cancelled, Stop is called, or the stream is lost. The initial
// subscription happens before Start returns.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.started {
		return ErrAlreadyStarted
	}
	if o.bus == nil {
		return fmt.Errorf("no notification bus configured")
	}

	sub, err := o.bus.Subscribe(ctx, backend.Channels...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to backend notifications: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.started = true
	o.cancel = cancel

	o.logger.Info().Strs("channels", backend.Channels).Msg("subscribed to backend notifications")

	go func() {
		err := o.run(runCtx, sub)

		o.runMu.Lock()
		o.runErr = err
		o.runMu.Unlock()
		close(o.done)
	}()
	return nil
}

// Stop ends the subscriber and waits for it to return
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	started, cancel := o.started, o.cancel
	o.runMu.Unlock()

	if !started {
		return
	}
	cancel()
	<-o.done
}

// Done is closed once the subscriber has returned
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Err reports why the subscriber ended: nil after Stop or context
// cancellation, an ErrStreamLost error otherwise
func (o *Orchestrator) Err() error {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.runErr
}

// run consumes sub and resubscribes once per interruption. A failed
// resubscription fails every open job with ReasonStreamLost, and so does
// every later StartDownload.
func (o *Orchestrator) run(ctx context.Context, sub backend.Subscription) error {
	for {
		err := o.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return nil
		}

		interrupted := fmt.Errorf("%w: %w", ErrEventStreamInterrupted, err)
		o.metrics.StreamInterrupted()
		o.logger.Warn().Err(interrupted).Msg("notification stream interrupted, resubscribing")

		next, subErr := o.bus.Subscribe(ctx, backend.Channels...)
		if subErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			lost := fmt.Errorf("%w: %w", ErrStreamLost, errors.Join(interrupted, subErr))
			failed := o.markStreamLost(lost)
			o.logger.Error().Err(lost).Int("failed_jobs", failed).Msg("notification stream lost")
			return lost
		}

		o.logger.Info().Msg("resubscribed to backend notifications")
		sub = next
	}
}

// consume applies events until ctx ends or the stream does. Events already
// buffered when the stream ends are still applied.
func (o *Orchestrator) consume(ctx context.Context, sub backend.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sub.Events():
			o.HandleEvent(ev)
		case <-sub.Done():
			o.drain(sub)
			if err := sub.Err(); err != nil {
				return err
			}
			return errSubscriptionClosed
		}
	}
}

func (o *Orchestrator) drain(sub backend.Subscription) {
	for {
		select {
		case ev := <-sub.Events():
			o.HandleEvent(ev)
		default:
			return
		}
	}
}
