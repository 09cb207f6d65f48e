package listener

import (
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

func startTestServer(t *testing.T) (*comms.Conn, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("listener:listener_integration_test - failed to create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("listener:listener_integration_test - server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("listener:listener_integration_test - failed to connect: %v", err)
	}
	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

func TestListener_ResolvesOverComms(t *testing.T) {
	nc, cleanup := startTestServer(t)
	defer cleanup()

	res := newFakeResolver("cb1")
	l := New(res)
	if err := l.Start(nc, ""); err != nil {
		t.Fatalf("listener:listener_integration_test - Start: %v", err)
	}
	defer l.Stop()
	if l.Subject() != "bridge.meetone.inbound" {
		t.Errorf("listener:listener_integration_test - Subject = %q", l.Subject())
	}

	// a second Start must not add another subscription
	if err := l.Start(nc, "other.subject"); err != nil {
		t.Fatalf("listener:listener_integration_test - second Start: %v", err)
	}
	if l.Subject() != "bridge.meetone.inbound" {
		t.Errorf("listener:listener_integration_test - Subject changed to %q", l.Subject())
	}

	if err := nc.Publish("bridge.meetone.inbound", envelope(t, "cb1", map[string]any{"code": 0})); err != nil {
		t.Fatalf("listener:listener_integration_test - publish: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("listener:listener_integration_test - flush: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for res.get("cb1") == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener:listener_integration_test - timeout waiting for resolve")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !res.get("cb1").OK() {
		t.Error("listener:listener_integration_test - expected OK response")
	}
}

func TestListener_StopBeforeStart(t *testing.T) {
	l := New(newFakeResolver())
	if err := l.Stop(); err != nil {
		t.Errorf("listener:listener_integration_test - Stop: %v", err)
	}
}
