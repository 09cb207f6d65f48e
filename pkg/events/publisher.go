package events

import (
	"context"
	"errors"
)

// EventPublisher is the interface for publishing request lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event *RequestEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing.
type NoOpPublisher struct{}

// Publish is a no-op.
func (p *NoOpPublisher) Publish(_ context.Context, _ *RequestEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *RequestEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *RequestEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Publish calls the callback.
func (p *CallbackPublisher) Publish(ctx context.Context, event *RequestEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher publishes to every wrapped publisher and joins their errors.
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher skips nil publishers.
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish sends the event to all publishers, even after one fails.
func (m *MultiPublisher) Publish(ctx context.Context, event *RequestEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
