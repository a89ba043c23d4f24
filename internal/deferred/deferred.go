// Package deferred provides a settable future that many goroutines can await.
//
// A Deferred starts out pending and is settled exactly once, either with a value
// (Resolve) or with an error (Reject). Settling an already settled Deferred is a no-op.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// ErrNilRejection replaces a nil error passed to Reject
var ErrNilRejection = errors.New("deferred rejected without an error")

// Deferred is a value of type T that becomes available later, or fails
type Deferred[T any] struct {
	mu        sync.Mutex
	settled   bool
	value     T
	err       error
	done      chan struct{}
	callbacks []func(T, error)
}

// New returns a pending Deferred
func New[T any]() *Deferred[T] {
	return &Deferred[T]{
		done: make(chan struct{}),
	}
}

// Resolve settles the deferred with value.
// Returns false if the deferred was already settled.
func (d *Deferred[T]) Resolve(value T) bool {
	return d.settle(value, nil)
}

// Reject settles the deferred with err.
// Returns false if the deferred was already settled.
func (d *Deferred[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	var empty T
	return d.settle(empty, err)
}

func (d *Deferred[T]) settle(value T, err error) bool {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return false
	}

	d.settled = true
	d.value = value
	d.err = err
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	// Run outside the lock so callbacks may use the deferred
	for _, callback := range callbacks {
		callback(value, err)
	}

	return true
}

// Await blocks until the deferred is settled or ctx is done.
//
// Giving up on ctx does not settle the deferred.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.value, d.err
	default:
	}

	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	}
}

// OnSettle registers callback to be called once the deferred is settled.
// If the deferred is already settled the callback is called immediately.
func (d *Deferred[T]) OnSettle(callback func(value T, err error)) {
	d.mu.Lock()
	if !d.settled {
		d.callbacks = append(d.callbacks, callback)
		d.mu.Unlock()
		return
	}
	value, err := d.value, d.err
	d.mu.Unlock()

	callback(value, err)
}

// Done returns a channel that is closed when the deferred is settled
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Settled reports whether the deferred has been resolved or rejected
func (d *Deferred[T]) Settled() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking.
// settled is false while the deferred is still pending.
func (d *Deferred[T]) Result() (value T, settled bool, err error) {
	select {
	case <-d.done:
		return d.value, true, d.err
	default:
		var empty T
		return empty, false, nil
	}
}
