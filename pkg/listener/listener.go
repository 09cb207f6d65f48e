// Package listener subscribes to host response envelopes and settles the
// matching pending request.
package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/pkg/bridge"
	"github.com/meetone/meet-bridge/pkg/codec"
	"github.com/meetone/meet-bridge/pkg/commsutil"
)

const logPrefix = "listener:listener"

// ReservedPrefix marks callback ids owned by a newer protocol generation;
// their messages are not for this listener.
const ReservedPrefix = "meet_v3_"

var (
	// ErrMalformedEnvelope is returned for messages that cannot be parsed or decoded.
	ErrMalformedEnvelope = errors.New("listener: malformed envelope")
	// ErrUnmatched is returned when no pending request has the message's callback id.
	ErrUnmatched = errors.New("listener: no pending request for callback id")
	// ErrReserved is returned for callback ids carrying ReservedPrefix.
	ErrReserved = errors.New("listener: callback id reserved for another protocol")
)

// Resolver settles pending requests; *bridge.Bridge implements it.
type Resolver interface {
	Resolve(callbackID string, resp *bridge.Response) bool
}

// Subscriber is the part of *nats.Conn the listener needs.
type Subscriber interface {
	Subscribe(subject string, cb comms.MsgHandler) (*comms.Subscription, error)
}

// Listener is the process's single subscription to host responses.
type Listener struct {
	resolver Resolver

	startOnce sync.Once
	startErr  error
	sub       *comms.Subscription
	subject   string
	mu        sync.Mutex
}

// New creates a Listener for resolver.
func New(resolver Resolver) *Listener {
	return &Listener{resolver: resolver}
}

// Start subscribes to subject (default commsutil.SubjectInbound). Only the
// first call subscribes; later calls return the first call's error.
func (l *Listener) Start(s Subscriber, subject string) error {
	l.startOnce.Do(func() {
		if subject == "" {
			subject = commsutil.SubjectInbound
		}
		sub, err := s.Subscribe(subject, func(msg *comms.Msg) {
			// Errors are logged inside HandleMessage; a bad message never affects other requests.
			_ = l.HandleMessage(msg.Data)
		})
		if err != nil {
			l.startErr = fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
			return
		}
		l.mu.Lock()
		l.sub = sub
		l.subject = subject
		l.mu.Unlock()
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	})
	return l.startErr
}

// Subject returns the subscribed subject, empty before Start.
func (l *Listener) Subject() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subject
}

// Stop unsubscribes. The listener cannot be restarted.
func (l *Listener) Stop() error {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("%s - unsubscribe: %w", logPrefix, err)
	}
	return nil
}

// HandleMessage processes one host message and settles the matching request.
func (l *Listener) HandleMessage(data []byte) error {
	env, err := commsutil.DecodeEnvelope(data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping message: %v", logPrefix, err))
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if env.CallbackID == "" {
		slog.Warn(fmt.Sprintf("%s - dropping message without callbackId", logPrefix))
		return fmt.Errorf("%w: missing callbackId", ErrMalformedEnvelope)
	}
	if strings.HasPrefix(env.CallbackID, ReservedPrefix) {
		slog.Debug(fmt.Sprintf("%s - ignoring reserved callback id %s", logPrefix, env.CallbackID))
		return ErrReserved
	}

	raw, err := codec.DecodeRaw(env.Params)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping message for %s: %v", logPrefix, env.CallbackID, err))
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	if !l.resolver.Resolve(env.CallbackID, bridge.ParseResponse(raw)) {
		slog.Debug(fmt.Sprintf("%s - no pending request for %s", logPrefix, env.CallbackID))
		return ErrUnmatched
	}
	slog.Debug(fmt.Sprintf("%s - resolved %s", logPrefix, env.CallbackID))
	return nil
}
