package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/meetone/meet-bridge/pkg/bridge"
	"github.com/meetone/meet-bridge/pkg/codec"
	"github.com/meetone/meet-bridge/pkg/commsutil"
	"github.com/meetone/meet-bridge/pkg/dispatch"
)

const ingressLogPrefix = "server:ingress"

// caller is the part of *bridge.Bridge the request subject drives.
type caller interface {
	Call(ctx context.Context, route string, params any) (*bridge.Result, error)
}

// startIngress subscribes the request subject. Each message is served on its
// own goroutine since a deferred request waits for the host.
func (s *Server) startIngress(subject string) error {
	s.ingressCtx, s.stopIngress = context.WithCancel(context.Background())
	sub, err := s.nc.Subscribe(subject, func(msg *comms.Msg) {
		s.ingressMu.Lock()
		if s.ingressClosed {
			s.ingressMu.Unlock()
			return
		}
		s.inflight.Add(1)
		s.ingressMu.Unlock()
		go func() {
			defer s.inflight.Done()
			reply := s.handleCall(s.ingressCtx, msg.Data)
			data, err := commsutil.EncodePayload(reply)
			if err != nil {
				slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", ingressLogPrefix, err))
				return
			}
			if err := msg.Respond(data); err != nil {
				slog.Debug(fmt.Sprintf("%s - no reply sent on %s: %v", ingressLogPrefix, msg.Subject, err))
			}
		}()
	})
	if err != nil {
		s.stopIngress()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", ingressLogPrefix, subject, err)
	}
	s.ingress = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", ingressLogPrefix, subject))
	return nil
}

// closeIngress stops taking requests; replies already in flight still go out.
func (s *Server) closeIngress() {
	if s.ingress == nil {
		return
	}
	if err := s.ingress.Unsubscribe(); err != nil {
		slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", ingressLogPrefix, s.ingress.Subject, err))
	}
	s.ingressMu.Lock()
	s.ingressClosed = true
	s.ingressMu.Unlock()
}

// handleCall runs one CallRequest through the bridge and builds the reply.
func (s *Server) handleCall(ctx context.Context, data []byte) *commsutil.CallReply {
	var req commsutil.CallRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", ingressLogPrefix, err))
		return errorReply(commsutil.ErrCodeInvalidRequest, "Failed to decode request", false)
	}
	req.Route = strings.TrimSpace(req.Route)
	if req.Route == "" {
		return errorReply(commsutil.ErrCodeInvalidRequest, "route is required", false)
	}
	if req.TimeoutMs < 0 {
		return errorReply(commsutil.ErrCodeInvalidRequest, "timeoutMs must not be negative", false)
	}

	var params any
	if len(req.Params) > 0 && string(req.Params) != "null" {
		params = req.Params
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, time.Duration(req.TimeoutMs)*time.Millisecond, bridge.ErrTimeout)
		defer cancel()
	}

	res, err := s.calls.Call(ctx, req.Route, params)
	if err != nil {
		return failureReply(err)
	}
	if res.Kind() == bridge.ResultImmediate {
		return &commsutil.CallReply{Ok: true, Kind: res.Kind().String(), URI: res.URI()}
	}

	reply := &commsutil.CallReply{Kind: res.Kind().String(), CallbackID: res.Pending().ID(), URI: res.Pending().URI()}
	// ctx ending settles the handle with ErrTimeout or ErrCancelled; wait for that
	resp, err := res.Await(context.WithoutCancel(ctx))
	if err != nil {
		failed := failureReply(err)
		reply.Error = failed.Error
		return reply
	}
	reply.Ok = true
	reply.Result = resp.Raw
	if len(reply.Result) == 0 {
		reply.Result = json.RawMessage("{}")
	}
	return reply
}

func errorReply(code, message string, retryable bool) *commsutil.CallReply {
	return &commsutil.CallReply{Error: &commsutil.ErrorDetail{Code: code, Message: message, Retryable: retryable}}
}

// failureReply maps bridge, dispatch and codec errors onto reply codes.
func failureReply(err error) *commsutil.CallReply {
	var encErr *codec.EncodeError
	var dispErr *dispatch.Error
	switch {
	case errors.As(err, &encErr):
		return errorReply(commsutil.ErrCodeInvalidRequest, err.Error(), false)
	case errors.Is(err, bridge.ErrTimeout):
		return errorReply(commsutil.ErrCodeTimeout, err.Error(), true)
	case errors.Is(err, bridge.ErrClosed):
		return errorReply(commsutil.ErrCodeUnavailable, err.Error(), true)
	case errors.Is(err, bridge.ErrCancelled):
		return errorReply(commsutil.ErrCodeCancelled, err.Error(), false)
	case errors.As(err, &dispErr):
		return errorReply(commsutil.ErrCodeDispatchFailed, err.Error(), true)
	default:
		slog.Error(fmt.Sprintf("%s - request failed: %v", ingressLogPrefix, err))
		return errorReply(commsutil.ErrCodeInternal, err.Error(), false)
	}
}
