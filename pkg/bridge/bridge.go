// Package bridge builds wallet host URIs and correlates them with the
// responses the host posts back.
//
// A Bridge owns its pending-request table. Call registers a one-shot entry
// under a fresh callback id, dispatches the URI in the background and returns
// a Deferred result; the response listener settles the entry through Resolve.
// Hosts older than semver.MinCallbackVersion never answer, so a Bridge built
// for one returns Immediate results carrying only the URI.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meetone/meet-bridge/pkg/codec"
	"github.com/meetone/meet-bridge/pkg/commsutil"
	"github.com/meetone/meet-bridge/pkg/events"
	"github.com/meetone/meet-bridge/pkg/semver"
)

const logPrefix = "bridge:bridge"

// Dispatcher delivers a URI to the host.
type Dispatcher interface {
	Dispatch(ctx context.Context, uri string) error
}

// Mode is decided once at construction from the host version.
type Mode int

const (
	// ModeDeferred: the host posts correlated responses.
	ModeDeferred Mode = iota + 1
	// ModeImmediate: legacy host; Call returns the URI only.
	ModeImmediate
)

func (m Mode) String() string {
	if m == ModeImmediate {
		return "immediate"
	}
	return "deferred"
}

// NewParams holds parameters for New.
type NewParams struct {
	// Scheme defaults to "meetone://".
	Scheme string
	// Dispatcher is required unless the host is legacy.
	Dispatcher Dispatcher
	// HostVersion is the host's protocol version; empty means legacy.
	HostVersion string
	CompareMode semver.CompareMode
	// RequestTimeout applies when the ctx passed to Call has no deadline. Zero disables it.
	RequestTimeout time.Duration
	Publisher      events.EventPublisher
	IDs            *IDGenerator
}

// Bridge is the request correlator.
type Bridge struct {
	scheme         string
	mode           Mode
	hostVersion    string
	dispatcher     Dispatcher
	requestTimeout time.Duration
	publisher      events.EventPublisher
	ids            *IDGenerator

	mu      sync.Mutex
	pending map[string]*entry
	closed  bool
}

type entry struct {
	pending *Pending
	// stop detaches the context watcher; cancel releases the request context.
	stop   func() bool
	cancel context.CancelCauseFunc
}

// New creates a Bridge.
func New(params NewParams) (*Bridge, error) {
	scheme := params.Scheme
	if scheme == "" {
		scheme = commsutil.DefaultScheme
	}

	supports, err := semver.SupportsCallbacks(params.HostVersion, params.CompareMode)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	mode := ModeImmediate
	if supports {
		mode = ModeDeferred
	}
	if mode == ModeDeferred && params.Dispatcher == nil {
		return nil, fmt.Errorf("%s - a dispatcher is required for host version %s", logPrefix, params.HostVersion)
	}

	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	ids := params.IDs
	if ids == nil {
		ids = NewIDGenerator()
	}

	slog.Debug(fmt.Sprintf("%s - scheme=%s host=%q mode=%s", logPrefix, scheme, params.HostVersion, mode))
	return &Bridge{
		scheme:         scheme,
		mode:           mode,
		hostVersion:    params.HostVersion,
		dispatcher:     params.Dispatcher,
		requestTimeout: params.RequestTimeout,
		publisher:      pub,
		ids:            ids,
		pending:        make(map[string]*entry),
	}, nil
}

// Scheme returns the URI scheme.
func (b *Bridge) Scheme() string { return b.scheme }

// Mode returns the protocol mode.
func (b *Bridge) Mode() Mode { return b.mode }

// HostVersion returns the configured host version.
func (b *Bridge) HostVersion() string { return b.hostVersion }

// GenerateURIInput holds parameters for GenerateURI.
type GenerateURIInput struct {
	// RouteName defaults to RouteTransfer.
	RouteName string
	// Params defaults to an empty object.
	Params any
	// CallbackID is appended when non-empty.
	CallbackID string
}

// GenerateURI builds <scheme><route>?params=<token>[&callbackId=<id>].
func (b *Bridge) GenerateURI(input GenerateURIInput) (string, error) {
	route := input.RouteName
	if route == "" {
		route = RouteTransfer
	}
	params := input.Params
	if params == nil {
		params = map[string]any{}
	}

	token, err := codec.Encode(params)
	if err != nil {
		return "", fmt.Errorf("%s - generate URI for %s: %w", logPrefix, route, err)
	}

	var sb strings.Builder
	sb.WriteString(b.scheme)
	sb.WriteString(route)
	sb.WriteString("?params=")
	sb.WriteString(token)
	if input.CallbackID != "" {
		sb.WriteString("&callbackId=")
		sb.WriteString(input.CallbackID)
	}
	return sb.String(), nil
}

// Call builds the URI for route and params and hands it to the host.
//
// Legacy hosts get Immediate(uri) and nothing is dispatched. Otherwise the
// request is registered, dispatched in the background and Deferred(pending)
// is returned. ctx bounds the whole request: when it ends (or the default
// timeout fires) the entry is removed and the handle settles with
// ErrCancelled or ErrTimeout. A dispatch that exhausts its retries settles the
// handle with the *dispatch.Error.
func (b *Bridge) Call(ctx context.Context, route string, params any) (*Result, error) {
	if b.mode == ModeImmediate {
		uri, err := b.GenerateURI(GenerateURIInput{RouteName: route, Params: params})
		if err != nil {
			return nil, err
		}
		b.publish(&events.RequestEvent{Kind: events.KindImmediate, Route: route, URI: uri})
		return Immediate(uri), nil
	}

	id := b.ids.Next()
	uri, err := b.GenerateURI(GenerateURIInput{RouteName: route, Params: params, CallbackID: id})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	if b.requestTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancelTimeout context.CancelFunc
			reqCtx, cancelTimeout = context.WithTimeoutCause(reqCtx, b.requestTimeout, ErrTimeout)
			outer := cancel
			cancel = func(cause error) {
				outer(cause)
				cancelTimeout()
			}
		}
	}

	p := newPending(id, route, uri)
	p.cancel = func() { cancel(ErrCancelled) }

	if err := b.register(p, cancel); err != nil {
		cancel(err)
		return nil, err
	}

	// Registered before the watcher so an already-done ctx settles through abandon.
	stop := context.AfterFunc(reqCtx, func() {
		b.abandon(id, settleCause(reqCtx))
	})
	b.mu.Lock()
	if e, ok := b.pending[id]; ok {
		e.stop = stop
	}
	b.mu.Unlock()

	go b.dispatch(reqCtx, p)

	return Deferred(p), nil
}

func (b *Bridge) register(p *Pending, cancel context.CancelCauseFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, exists := b.pending[p.id]; exists {
		return fmt.Errorf("%s - %w: %s", logPrefix, ErrDuplicateCallback, p.id)
	}
	b.pending[p.id] = &entry{pending: p, cancel: cancel}
	return nil
}

func (b *Bridge) dispatch(ctx context.Context, p *Pending) {
	if err := b.dispatcher.Dispatch(ctx, p.uri); err != nil {
		if ctx.Err() != nil {
			// abandon already settled (or is settling) the handle
			return
		}
		slog.Error(fmt.Sprintf("%s - request %s (%s) failed to dispatch: %v", logPrefix, p.id, p.route, err))
		b.abandon(p.id, err)
		return
	}
	b.publish(&events.RequestEvent{Kind: events.KindDispatched, CallbackID: p.id, Route: p.route, URI: p.uri})
}

// Resolve settles the request registered under callbackID with resp and
// removes it. It reports false for unknown or already settled ids.
func (b *Bridge) Resolve(callbackID string, resp *Response) bool {
	e := b.take(callbackID)
	if e == nil {
		return false
	}
	if !e.pending.settle(resp, nil) {
		return false
	}
	b.release(e)

	event := &events.RequestEvent{Kind: events.KindResolved, CallbackID: callbackID, Route: e.pending.route}
	if resp != nil && resp.hasCode {
		code := resp.Code
		event.Code = &code
	}
	b.publish(event)
	return true
}

// Cancel abandons the request registered under callbackID.
func (b *Bridge) Cancel(callbackID string) bool {
	return b.abandon(callbackID, ErrCancelled)
}

// PendingCount returns the number of requests awaiting a response.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close settles every pending request with ErrClosed; later Calls fail with ErrClosed.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	entries := make([]*entry, 0, len(b.pending))
	for id, e := range b.pending {
		entries = append(entries, e)
		delete(b.pending, id)
	}
	b.mu.Unlock()

	for _, e := range entries {
		if e.pending.settle(nil, ErrClosed) {
			b.release(e)
			b.publish(&events.RequestEvent{Kind: events.KindRejected, CallbackID: e.pending.id, Route: e.pending.route, Error: ErrClosed.Error()})
		}
	}
}

func (b *Bridge) abandon(callbackID string, err error) bool {
	e := b.take(callbackID)
	if e == nil {
		return false
	}
	if !e.pending.settle(nil, err) {
		return false
	}
	b.release(e)
	if errors.Is(err, ErrCancelled) {
		slog.Debug(fmt.Sprintf("%s - request %s cancelled", logPrefix, callbackID))
	} else {
		slog.Warn(fmt.Sprintf("%s - request %s (%s) rejected: %v", logPrefix, callbackID, e.pending.route, err))
	}
	b.publish(&events.RequestEvent{Kind: events.KindRejected, CallbackID: callbackID, Route: e.pending.route, Error: err.Error()})
	return true
}

func (b *Bridge) take(callbackID string) *entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.pending[callbackID]
	if !ok {
		return nil
	}
	delete(b.pending, callbackID)
	return e
}

// release stops the context watcher before cancelling so it cannot fire for a settled entry.
func (b *Bridge) release(e *entry) {
	b.mu.Lock()
	stop := e.stop
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	if e.cancel != nil {
		e.cancel(context.Canceled)
	}
}

func (b *Bridge) publish(event *events.RequestEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if err := b.publisher.Publish(context.Background(), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event: %v", logPrefix, event.Kind, err))
	}
}

// settleCause maps why a request context ended onto ErrTimeout or ErrCancelled.
func settleCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrTimeout), errors.Is(cause, ErrCancelled):
		return cause
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, cause)
	default:
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
}
