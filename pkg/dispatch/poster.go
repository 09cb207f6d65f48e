// Package dispatch delivers bridge URIs to the wallet host with a bounded,
// fixed-delay retry.
package dispatch

import (
	"context"
	"fmt"

	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/pkg/commsutil"
)

const posterLogPrefix = "dispatch:poster"

// Poster hands one payload to the host. Implementations report transient
// failures as errors; the Dispatcher retries them.
type Poster interface {
	Post(ctx context.Context, payload []byte) error
}

// CommsPoster publishes payloads on a NATS subject the host subscribes to.
type CommsPoster struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPoster creates a CommsPoster. An empty subject uses the default outbound subject.
func NewCommsPoster(nc *comms.Conn, subject string) *CommsPoster {
	if subject == "" {
		subject = commsutil.SubjectOutbound
	}
	return &CommsPoster{nc: nc, subject: subject}
}

// Subject returns the outbound subject.
func (p *CommsPoster) Subject() string {
	return p.subject
}

// Post publishes and flushes so a closed or stalled link surfaces as an error.
func (p *CommsPoster) Post(ctx context.Context, payload []byte) error {
	if err := p.nc.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("%s - publish to %s: %w", posterLogPrefix, p.subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%s - flush %s: %w", posterLogPrefix, p.subject, err)
	}
	return nil
}

// CallbackPoster adapts a function to Poster (in-process hosts, tests).
type CallbackPoster struct {
	callback func(ctx context.Context, payload []byte) error
}

// NewCallbackPoster creates a new CallbackPoster.
func NewCallbackPoster(cb func(ctx context.Context, payload []byte) error) *CallbackPoster {
	return &CallbackPoster{callback: cb}
}

// Post calls the callback.
func (p *CallbackPoster) Post(ctx context.Context, payload []byte) error {
	return p.callback(ctx, payload)
}
