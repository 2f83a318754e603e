package events

import (
	"context"
	"log/slog"
)

// Channel is a non-blocking Publisher backed by a buffered channel. The
// resolving path must never stall on event delivery, so a full buffer drops
// the event and logs instead of applying backpressure.
type Channel struct {
	inbox  chan TransitionEvent
	logger *slog.Logger
}

func NewChannel(buffer int, logger *slog.Logger) *Channel {
	return &Channel{
		inbox:  make(chan TransitionEvent, buffer),
		logger: logger,
	}
}

func (c *Channel) Publish(ctx context.Context, event TransitionEvent) error {
	select {
	case c.inbox <- event:
	default:
		c.logger.WarnContext(ctx, "transition event dropped, buffer full",
			"verification_id", event.VerificationID,
			"transition", event.Transition,
		)
	}
	return nil
}

// Inbox exposes the channel for the draining worker.
func (c *Channel) Inbox() <-chan TransitionEvent {
	return c.inbox
}

// Worker drains a transition event channel into a sink publisher. It keeps
// background delivery testable without wiring broker implementations into
// the services.
type Worker struct {
	inbox  <-chan TransitionEvent
	sink   Publisher
	logger *slog.Logger
}

func NewWorker(inbox <-chan TransitionEvent, sink Publisher, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

// Run delivers events until the context is cancelled. Sink failures are
// logged and skipped; a broker outage must not wedge the worker.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish transition event",
					"verification_id", event.VerificationID,
					"transition", event.Transition,
					"error", err,
				)
			}
		}
	}
}
