// Package events defines request lifecycle events and the publishers that fan
// them out (NATS, request journal, callbacks).
package events

// Event kinds.
const (
	KindDispatched = "dispatched"
	KindResolved   = "resolved"
	KindRejected   = "rejected"
	// KindImmediate is emitted when a legacy host gets a bare URI with no callback.
	KindImmediate = "immediate"
)

// RequestEvent is emitted at each step of a bridge request.
type RequestEvent struct {
	Kind       string `json:"kind"`
	CallbackID string `json:"callbackId,omitempty"`
	Route      string `json:"route"`
	URI        string `json:"uri,omitempty"`
	// Code is the host result code on resolved events.
	Code      *int   `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}
