package client

import "sync"

// registry tracks the sends whose primitive can still be aborted.
type registry struct {
	mu        sync.Mutex
	exchanges map[*exchange]struct{}
	closed    bool
}

func newRegistry() *registry {
	return &registry{exchanges: make(map[*exchange]struct{})}
}

// add fails once the registry is closed.
func (r *registry) add(ex *exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClientClosed
	}
	r.exchanges[ex] = struct{}{}

	return nil
}

// remove reports whether ex was tracked.
func (r *registry) remove(ex *exchange) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exchanges[ex]; !ok {
		return false
	}
	delete(r.exchanges, ex)
	return true
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exchanges)
}

func (r *registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// close refuses further sends and returns the ones being tracked.
func (r *registry) close() []*exchange {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	exchanges := make([]*exchange, 0, len(r.exchanges))
	for ex := range r.exchanges {
		exchanges = append(exchanges, ex)
	}
	return exchanges
}
