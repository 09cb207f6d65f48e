package bridge

import "errors"

var (
	// ErrCancelled settles a pending request whose context or handle was cancelled.
	ErrCancelled = errors.New("bridge: request cancelled")
	// ErrTimeout settles a pending request that outlived its deadline.
	ErrTimeout = errors.New("bridge: request timed out")
	// ErrClosed is returned by Call after Close, and settles requests pending at Close.
	ErrClosed = errors.New("bridge: closed")
	// ErrDuplicateCallback is returned when a callback id is already in flight.
	ErrDuplicateCallback = errors.New("bridge: callback id already in flight")
	// ErrLegacyMode is returned when awaiting a result from a host without callback support.
	ErrLegacyMode = errors.New("bridge: host does not post responses (legacy mode)")
)
