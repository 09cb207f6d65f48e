package listener

import (
	"context"
	"errors"
	"sync"
	"testing"

	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/pkg/bridge"
	"github.com/meetone/meet-bridge/pkg/commsutil"
)

// fakeResolver settles each registered id once.
type fakeResolver struct {
	mu       sync.Mutex
	pending  map[string]bool
	resolved map[string]*bridge.Response
}

func newFakeResolver(ids ...string) *fakeResolver {
	r := &fakeResolver{pending: map[string]bool{}, resolved: map[string]*bridge.Response{}}
	for _, id := range ids {
		r.pending[id] = true
	}
	return r
}

func (r *fakeResolver) Resolve(id string, resp *bridge.Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pending[id] {
		return false
	}
	delete(r.pending, id)
	r.resolved[id] = resp
	return true
}

func (r *fakeResolver) get(id string) *bridge.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved[id]
}

func envelope(t *testing.T, id string, result any) []byte {
	t.Helper()
	data, err := commsutil.EncodeEnvelope(id, result)
	if err != nil {
		t.Fatalf("listener:listener_test - encode envelope: %v", err)
	}
	return data
}

func TestHandleMessage_Resolves(t *testing.T) {
	res := newFakeResolver("cb1")
	l := New(res)

	err := l.HandleMessage(envelope(t, "cb1", map[string]any{"code": 0, "data": map[string]any{"account": "alice"}}))
	if err != nil {
		t.Fatalf("listener:listener_test - HandleMessage: %v", err)
	}
	resp := res.get("cb1")
	if resp == nil {
		t.Fatal("listener:listener_test - cb1 not resolved")
	}
	if !resp.OK() {
		t.Errorf("listener:listener_test - expected OK response, got code %d", resp.Code)
	}
	var data struct {
		Account string `json:"account"`
	}
	if err := resp.DecodeData(&data); err != nil {
		t.Fatalf("listener:listener_test - DecodeData: %v", err)
	}
	if data.Account != "alice" {
		t.Errorf("listener:listener_test - account = %q, want alice", data.Account)
	}
}

func TestHandleMessage_OneShot(t *testing.T) {
	res := newFakeResolver("cb1")
	l := New(res)
	msg := envelope(t, "cb1", map[string]any{"code": 0})

	if err := l.HandleMessage(msg); err != nil {
		t.Fatalf("listener:listener_test - first message: %v", err)
	}
	if err := l.HandleMessage(msg); !errors.Is(err, ErrUnmatched) {
		t.Errorf("listener:listener_test - duplicate message: got %v, want ErrUnmatched", err)
	}
}

func TestHandleMessage_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not json", []byte("nope"), ErrMalformedEnvelope},
		{"missing callback id", []byte(`{"params":"JTdCJTdE"}`), ErrMalformedEnvelope},
		{"bad token", []byte(`{"params":"%%%","callbackId":"cb1"}`), ErrMalformedEnvelope},
		{"reserved prefix", []byte(`{"params":"JTdCJTdE","callbackId":"meet_v3_123"}`), ErrReserved},
		{"unknown id", []byte(`{"params":"JTdCJTdE","callbackId":"other"}`), ErrUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFakeResolver("cb1")
			l := New(res)
			err := l.HandleMessage(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("listener:listener_test - got %v, want %v", err, tt.want)
			}
			if res.get("cb1") != nil {
				t.Error("listener:listener_test - cb1 must stay pending")
			}
		})
	}
}

func TestHandleMessage_BridgeIntegration(t *testing.T) {
	b, err := bridge.New(bridge.NewParams{
		HostVersion: "2.0.0",
		Dispatcher:  dispatcherFunc(func(string) error { return nil }),
	})
	if err != nil {
		t.Fatalf("listener:listener_test - bridge.New: %v", err)
	}
	defer b.Close()

	first, err := b.AccountInfo(context.Background())
	if err != nil {
		t.Fatalf("listener:listener_test - Call: %v", err)
	}
	second, err := b.AccountInfo(context.Background())
	if err != nil {
		t.Fatalf("listener:listener_test - Call: %v", err)
	}

	l := New(b)
	// answer out of order
	if err := l.HandleMessage(envelope(t, second.Pending().ID(), map[string]any{"code": 0, "data": "two"})); err != nil {
		t.Fatalf("listener:listener_test - second: %v", err)
	}
	if err := l.HandleMessage(envelope(t, first.Pending().ID(), map[string]any{"code": 1, "message": "denied"})); err != nil {
		t.Fatalf("listener:listener_test - first: %v", err)
	}

	resp, err := second.Await(context.Background())
	if err != nil || !resp.OK() {
		t.Errorf("listener:listener_test - second: resp=%+v err=%v", resp, err)
	}
	resp, err = first.Await(context.Background())
	if err != nil {
		t.Fatalf("listener:listener_test - first: %v", err)
	}
	if resp.OK() || resp.Code != 1 || resp.Message != "denied" {
		t.Errorf("listener:listener_test - first: unexpected response %+v", resp)
	}
	if b.PendingCount() != 0 {
		t.Errorf("listener:listener_test - PendingCount = %d, want 0", b.PendingCount())
	}
}

type countingSubscriber struct {
	calls int
	err   error
}

func (s *countingSubscriber) Subscribe(string, comms.MsgHandler) (*comms.Subscription, error) {
	s.calls++
	return nil, s.err
}

func TestStart_SubscribesOnce(t *testing.T) {
	s := &countingSubscriber{err: errors.New("no link")}
	l := New(newFakeResolver())

	err1 := l.Start(s, "")
	err2 := l.Start(s, "")
	if err1 == nil || err2 == nil {
		t.Fatal("listener:listener_test - expected subscribe error from both calls")
	}
	if s.calls != 1 {
		t.Errorf("listener:listener_test - Subscribe called %d times, want 1", s.calls)
	}
}

type dispatcherFunc func(uri string) error

func (f dispatcherFunc) Dispatch(_ context.Context, uri string) error { return f(uri) }
