package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string, transition TransitionType) TransitionEvent {
	return TransitionEvent{VerificationID: id, Transition: transition, Timestamp: time.Now()}
}

func TestChannelPublish(t *testing.T) {
	t.Run("buffers events", func(t *testing.T) {
		c := NewChannel(2, discardLogger())
		require.NoError(t, c.Publish(context.Background(), event("a", TransitionSubmitted)))
		require.NoError(t, c.Publish(context.Background(), event("b", TransitionVerified)))

		assert.Equal(t, "a", (<-c.Inbox()).VerificationID)
		assert.Equal(t, "b", (<-c.Inbox()).VerificationID)
	})

	t.Run("drops instead of blocking when the buffer is full", func(t *testing.T) {
		c := NewChannel(1, discardLogger())
		require.NoError(t, c.Publish(context.Background(), event("kept", TransitionSubmitted)))

		done := make(chan struct{})
		go func() {
			_ = c.Publish(context.Background(), event("dropped", TransitionSubmitted))
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a full buffer")
		}

		assert.Equal(t, "kept", (<-c.Inbox()).VerificationID)
		select {
		case e := <-c.Inbox():
			t.Fatalf("unexpected event %q", e.VerificationID)
		default:
		}
	})
}

type failingSink struct {
	failFor map[string]bool
	sink    *InMemory
}

func (s *failingSink) Publish(ctx context.Context, e TransitionEvent) error {
	if s.failFor[e.VerificationID] {
		return errors.New("broker unavailable")
	}
	return s.sink.Publish(ctx, e)
}

func TestWorkerRun(t *testing.T) {
	t.Run("drains the inbox into the sink", func(t *testing.T) {
		c := NewChannel(8, discardLogger())
		sink := NewInMemory()
		w := NewWorker(c.Inbox(), sink, discardLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = w.Run(ctx)
			close(done)
		}()

		require.NoError(t, c.Publish(ctx, event("a", TransitionSubmitted)))
		require.NoError(t, c.Publish(ctx, event("b", TransitionVerified)))

		require.Eventually(t, func() bool {
			return len(sink.Events()) == 2
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		<-done

		published := sink.Events()
		assert.Equal(t, "a", published[0].VerificationID)
		assert.Equal(t, TransitionVerified, published[1].Transition)
	})

	t.Run("sink failures do not wedge the worker", func(t *testing.T) {
		c := NewChannel(8, discardLogger())
		sink := &failingSink{failFor: map[string]bool{"bad": true}, sink: NewInMemory()}
		w := NewWorker(c.Inbox(), sink, discardLogger())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = w.Run(ctx) }()

		require.NoError(t, c.Publish(ctx, event("bad", TransitionSubmitted)))
		require.NoError(t, c.Publish(ctx, event("good", TransitionSubmitted)))

		require.Eventually(t, func() bool {
			return len(sink.sink.Events()) == 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "good", sink.sink.Events()[0].VerificationID)
	})
}
