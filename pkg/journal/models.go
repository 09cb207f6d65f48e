package journal

import "time"

// Request statuses. A request moves from pending (or dispatched) to exactly
// one of resolved or rejected; immediate rows never settle.
const (
	StatusPending    = "pending"
	StatusDispatched = "dispatched"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
	StatusImmediate  = "immediate"
)

// Request represents a row in the bridge_requests table.
type Request struct {
	ID           int64      `json:"id"`
	CallbackID   *string    `json:"callback_id,omitempty"`
	Route        string     `json:"route"`
	URI          string     `json:"uri,omitempty"`
	Status       string     `json:"status"`
	Code         *int       `json:"code,omitempty"`
	Error        *string    `json:"error,omitempty"`
	Created      time.Time  `json:"created"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	Modified     time.Time  `json:"modified"`
}

// Settled reports whether the request reached a terminal status.
func (r *Request) Settled() bool {
	return r.Status == StatusResolved || r.Status == StatusRejected
}
