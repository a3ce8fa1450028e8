package client

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	// KindCancelled means cancellation was requested before or while the request was in flight.
	KindCancelled Kind = iota + 1
	// KindTransport means the host could not complete the exchange.
	KindTransport
	// KindInvalidRequest means the request was rejected before anything was sent.
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindTransport:
		return "transport error"
	case KindInvalidRequest:
		return "invalid request"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrCancelled      = errors.New("request cancelled")
	ErrTransport      = errors.New("transport error")
	ErrInvalidRequest = errors.New("invalid request")

	ErrClientClosed = errors.New("client is closed")

	// errNetwork is what the host's error signal tells. There is no detail to it.
	errNetwork = errors.New("host reported a network error")
)

// Error is returned by every failed send.
type Error struct {
	Kind   Kind
	Method string
	URL    string

	cause error
}

func (e *Error) Error() string {
	msg := e.Method + " " + e.URL + ": " + e.Kind.String()
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrCancelled:
		return e.Kind == KindCancelled
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	}
	return false
}

func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
