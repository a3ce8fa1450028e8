// Package promise implements a single-assignment future.
package promise

import (
	"context"
	"sync"
)

// Promise holds the eventual outcome of one asynchronous operation.
// The first call to Resolve or Reject wins, every later call is ignored.
type Promise[T any] struct {
	mu      sync.Mutex
	settled bool
	value   T
	err     error

	done chan struct{}
}

func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve settles the promise with v.
// It returns false if the promise was already settled.
func (p *Promise[T]) Resolve(v T) (success bool) {
	return p.settle(v, nil)
}

// Reject settles the promise with err.
// It returns false if the promise was already settled.
func (p *Promise[T]) Reject(err error) (success bool) {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settled {
		return false
	}

	p.value, p.err = v, err
	p.settled = true
	close(p.done)

	return true
}

func (p *Promise[T]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Done is closed once the promise is settled.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Result returns the settled outcome.
// Calling it before the promise is settled returns the zero value and nil error.
func (p *Promise[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// Await blocks until the promise is settled or ctx is done.
// Giving up on ctx does not settle the promise.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
