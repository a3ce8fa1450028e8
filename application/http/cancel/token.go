// Package cancel implements the cancellable handle of one in-flight request.
//
// A Token created with [New] belongs to the caller and may be reused by sequential sends,
// e.g. across retries. Cancellation is never reset, so cancelling a shared token
// cancels every later attempt as well. A Token created with [NewDisposable] is owned
// by whoever sends with it and becomes unusable after its first send is finalized.
package cancel

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrAborted          = errors.New("request aborted")
	ErrDisposed         = errors.New("token is disposed")
	ErrHandleRegistered = errors.New("abort handle is already registered")
	ErrTokenNotBegun    = errors.New("token is not attached to a send")
	ErrInUse            = errors.New("token is attached to another send")
	errNilHandle        = errors.New("abort handle is nil")
)

// Rejecter is the failing side of a completion slot.
type Rejecter interface {
	Reject(err error) bool
}

type state uint8

const (
	stateIdle state = iota
	statePending
	stateCompleted
)

type Token struct {
	mu sync.Mutex

	requested   bool // monotonic false -> true.
	autoDispose bool
	disposed    bool
	state       state
	abort       func()
}

// New creates a caller owned token.
func New() *Token {
	return &Token{}
}

// NewDisposable creates a single use token.
func NewDisposable() *Token {
	return &Token{autoDispose: true}
}

// RequestCancellation asks the in-flight operation to abort.
// If the abort handle is already known it is invoked right away,
// otherwise the request is latched until a handle is registered.
// It is a no-op on a completed token and safe to call any number of times.
func (t *Token) RequestCancellation() {
	t.mu.Lock()
	if t.state == stateCompleted || t.requested {
		t.mu.Unlock()
		return
	}
	t.requested = true
	abort := t.abort
	t.mu.Unlock()

	// Handles may re-enter the token through primitive callbacks.
	if abort != nil {
		abort()
	}
}

// RegisterAbortHandle associates the token with the abort capability of the
// primitive that is now in flight. If cancellation was latched before, handle is
// invoked immediately and slot is rejected with [ErrAborted].
func (t *Token) RegisterAbortHandle(handle func(), slot Rejecter, debugContext string) error {
	if handle == nil {
		return errNilHandle
	}

	t.mu.Lock()
	switch {
	case t.disposed:
		t.mu.Unlock()
		return ErrDisposed
	case t.state != statePending:
		t.mu.Unlock()
		return ErrTokenNotBegun
	case t.abort != nil:
		t.mu.Unlock()
		return ErrHandleRegistered
	}
	t.abort = handle
	latched := t.requested
	t.mu.Unlock()

	if latched {
		handle()
		slot.Reject(errors.Wrap(ErrAborted, debugContext))
	}

	return nil
}

// Begin attaches the token to a new send.
// A token may only be attached to one send at a time.
func (t *Token) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.disposed:
		return ErrDisposed
	case t.state == statePending:
		return ErrInUse
	}
	t.state = statePending

	return nil
}

// Finalize releases the token once its send has settled, whatever the outcome.
// Finalizing a token that was never begun is a no-op.
func (t *Token) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != statePending {
		return
	}

	t.abort = nil
	t.state = stateCompleted
	if t.autoDispose {
		t.disposed = true
	}
}

func (t *Token) CancellationRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

func (t *Token) AutoDispose() bool { return t.autoDispose }

func (t *Token) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

func (t *Token) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateCompleted
}
