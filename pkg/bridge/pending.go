package bridge

import (
	"context"
	"sync"
)

// Pending is the handle for one correlated request. It settles exactly once:
// with the host's Response, or with an error (dispatch failure, cancellation,
// timeout, Close). Later settle attempts are ignored.
type Pending struct {
	id    string
	route string
	uri   string

	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	resp *Response
	err  error

	cancel func()
}

func newPending(id, route, uri string) *Pending {
	return &Pending{
		id:    id,
		route: route,
		uri:   uri,
		done:  make(chan struct{}),
	}
}

// ID returns the callback id.
func (p *Pending) ID() string { return p.id }

// Route returns the requested route.
func (p *Pending) Route() string { return p.route }

// URI returns the URI that was dispatched.
func (p *Pending) URI() string { return p.uri }

// settle completes the handle. It reports whether this call settled it.
func (p *Pending) settle(resp *Response, err error) bool {
	settled := false
	p.once.Do(func() {
		p.mu.Lock()
		p.resp = resp
		p.err = err
		p.mu.Unlock()
		close(p.done)
		settled = true
	})
	return settled
}

// Done is closed once the handle settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the handle settles or ctx is done. A ctx ending here only
// stops waiting; use Cancel (or the ctx given to Call) to abandon the request.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the response without blocking; ok is false while pending.
// A handle settled with an error returns (nil, true); see Err.
func (p *Pending) Result() (*Response, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.resp, true
	default:
		return nil, false
	}
}

// Err returns the settlement error, or nil while pending or after a response.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.err
	default:
		return nil
	}
}

// Cancel abandons the request: the entry is removed and the handle settles
// with ErrCancelled. No-op once settled.
func (p *Pending) Cancel() {
	if p.cancel != nil {
		p.cancel()
	}
}
