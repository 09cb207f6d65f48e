package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to create server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("events:comms_publisher_integration_test - server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("events:comms_publisher_integration_test - failed to connect: %v", err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) chan *RequestEvent {
	t.Helper()
	received := make(chan *RequestEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event RequestEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("events:comms_publisher_integration_test - failed to unmarshal: %v", err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to subscribe: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
	return received
}

func TestCommsPublisher_Publish_GranularAndKindSubjects(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	granular := subscribeEvents(t, nc, "bridge.meetone.events.resolved.eos_transfer")
	kind := subscribeEvents(t, nc, "bridge.meetone.events.resolved")
	nc.Flush()

	code := 0
	event := &RequestEvent{
		Kind:       KindResolved,
		CallbackID: "meet_callback_1_abc",
		Route:      "eos/transfer",
		Code:       &code,
		Timestamp:  "2025-01-01T00:00:00Z",
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_integration_test - Publish failed: %v", err)
	}
	nc.Flush()

	for _, ch := range []struct {
		name string
		ch   chan *RequestEvent
	}{
		{"granular", granular},
		{"kind", kind},
	} {
		select {
		case got := <-ch.ch:
			if got.CallbackID != "meet_callback_1_abc" {
				t.Errorf("events:comms_publisher_integration_test - %s CallbackID = %q", ch.name, got.CallbackID)
			}
			if got.Route != "eos/transfer" {
				t.Errorf("events:comms_publisher_integration_test - %s Route = %q", ch.name, got.Route)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("events:comms_publisher_integration_test - timeout waiting for %s event", ch.name)
		}
	}
}

func TestCommsPublisher_CustomPrefix(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{SubjectPrefix: "custom.events"})
	received := subscribeEvents(t, nc, "custom.events.rejected")
	nc.Flush()

	err := publisher.Publish(context.Background(), &RequestEvent{
		Kind:  KindRejected,
		Route: "eos/signature",
		Error: "dispatch failed",
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - Publish failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Error != "dispatch failed" {
			t.Errorf("events:comms_publisher_integration_test - Error = %q", got.Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_integration_test - timeout waiting for custom prefix event")
	}
}

func TestNewCommsPublisher_NilOpts(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	if publisher.subjectPrefix != "bridge.meetone.events" {
		t.Errorf("events:comms_publisher_integration_test - subjectPrefix = %q, want %q",
			publisher.subjectPrefix, "bridge.meetone.events")
	}

	empty := NewCommsPublisher(nc, &CommsPublisherOpts{})
	if empty.subjectPrefix != "bridge.meetone.events" {
		t.Errorf("events:comms_publisher_integration_test - empty opts subjectPrefix = %q", empty.subjectPrefix)
	}
}
