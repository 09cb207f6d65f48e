package commsutil

import "encoding/json"

// CallRequest is the JSON envelope callers send on the request subject.
type CallRequest struct {
	Route string `json:"route"`
	// Params is the route's params object; empty means {}.
	Params json.RawMessage `json:"params,omitempty"`
	// TimeoutMs bounds the wait for the host's answer.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// CallReply answers a CallRequest.
type CallReply struct {
	Ok bool `json:"ok"`
	// Kind is "deferred" when the host answered, "immediate" for legacy hosts.
	Kind       string `json:"kind,omitempty"`
	CallbackID string `json:"callbackId,omitempty"`
	URI        string `json:"uri,omitempty"`
	// Result is the host's decoded answer, e.g. {"code": 0, "data": {...}}.
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Error codes carried in ErrorDetail.Code.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeCancelled      = "CANCELLED"
	ErrCodeUnavailable    = "UNAVAILABLE"
	ErrCodeDispatchFailed = "DISPATCH_FAILED"
	ErrCodeInternal       = "INTERNAL"
)
