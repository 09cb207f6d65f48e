package events

import (
	"context"
	"errors"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.Publish(context.Background(), &RequestEvent{
		Kind:  KindDispatched,
		Route: "eos/transfer",
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *RequestEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *RequestEvent) error {
		captured = event
		return nil
	})

	code := 0
	event := &RequestEvent{
		Kind:       KindResolved,
		CallbackID: "meet_callback_1_abc",
		Route:      "eos/account_info",
		Code:       &code,
		Timestamp:  "2025-01-01T00:00:00Z",
	}

	if err := pub.Publish(context.Background(), event); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.CallbackID != "meet_callback_1_abc" {
		t.Errorf("expected callback id meet_callback_1_abc, got %s", captured.CallbackID)
	}
	if captured.Code == nil || *captured.Code != 0 {
		t.Errorf("expected code 0, got %v", captured.Code)
	}
}

func TestMultiPublisher(t *testing.T) {
	var calls int
	ok := NewCallbackPublisher(func(_ context.Context, _ *RequestEvent) error {
		calls++
		return nil
	})
	boom := errors.New("boom")
	failing := NewCallbackPublisher(func(_ context.Context, _ *RequestEvent) error {
		calls++
		return boom
	})

	multi := NewMultiPublisher(failing, nil, ok)
	err := multi.Publish(context.Background(), &RequestEvent{Kind: KindRejected})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected both publishers to be called, got %d calls", calls)
	}
}

func TestMultiPublisher_Empty(t *testing.T) {
	if err := NewMultiPublisher().Publish(context.Background(), &RequestEvent{}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
