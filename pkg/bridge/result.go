package bridge

import "context"

// ResultKind discriminates Result.
type ResultKind int

const (
	// ResultImmediate carries only a URI; the host will not answer.
	ResultImmediate ResultKind = iota + 1
	// ResultDeferred carries a Pending handle.
	ResultDeferred
)

func (k ResultKind) String() string {
	switch k {
	case ResultImmediate:
		return "immediate"
	case ResultDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Result is what Call returns: Immediate(uri) for legacy hosts,
// Deferred(pending) for hosts that post correlated responses.
type Result struct {
	kind    ResultKind
	uri     string
	pending *Pending
}

// Immediate wraps a bare URI.
func Immediate(uri string) *Result {
	return &Result{kind: ResultImmediate, uri: uri}
}

// Deferred wraps a pending handle.
func Deferred(p *Pending) *Result {
	return &Result{kind: ResultDeferred, uri: p.URI(), pending: p}
}

// Kind returns the variant.
func (r *Result) Kind() ResultKind { return r.kind }

// URI returns the generated URI for either variant.
func (r *Result) URI() string { return r.uri }

// Pending returns the handle, or nil for Immediate results.
func (r *Result) Pending() *Pending { return r.pending }

// Await waits for a Deferred result. Immediate results return ErrLegacyMode.
func (r *Result) Await(ctx context.Context) (*Response, error) {
	if r.kind != ResultDeferred {
		return nil, ErrLegacyMode
	}
	return r.pending.Wait(ctx)
}
