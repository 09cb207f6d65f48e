package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meetone/meet-bridge/pkg/events"
)

const publisherLogPrefix = "journal:publisher"

// DefaultWriteTimeout bounds a single journal write.
const DefaultWriteTimeout = 5 * time.Second

// Recorder persists lifecycle events; *Repository implements it.
type Recorder interface {
	Record(ctx context.Context, event *events.RequestEvent) error
}

// Publisher is an events.EventPublisher that writes to the journal.
type Publisher struct {
	recorder Recorder
	timeout  time.Duration
}

// NewPublisher creates a Publisher. A non-positive timeout uses DefaultWriteTimeout.
func NewPublisher(recorder Recorder, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Publisher{recorder: recorder, timeout: timeout}
}

// Publish records the event. Events without a callback id other than
// immediate ones are skipped.
func (p *Publisher) Publish(ctx context.Context, event *events.RequestEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.recorder.Record(ctx, event); err != nil {
		if errors.Is(err, ErrMissingCallbackID) {
			return nil
		}
		return fmt.Errorf("%s - %w", publisherLogPrefix, err)
	}
	return nil
}
