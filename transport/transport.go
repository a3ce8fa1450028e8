// Package transport defines the host request primitive the HTTP client drives.
//
// A Primitive models one asynchronous request object of the host, shaped after
// the browser's XMLHttpRequest. It is configured, sent once, and reports its
// progress through four signals: headers received, load, error and abort.
// Exactly one of load, error or abort is reported per send.
package transport

import "github.com/pkg/errors"

var (
	ErrAlreadyOpened = errors.New("primitive is already opened")
	ErrNotOpened     = errors.New("primitive is not opened")
	ErrAlreadySent   = errors.New("primitive is already sent")
)

type Primitive interface {
	Open(method, url string, async bool) error

	SetWithCredentials(enabled bool)
	SetRequestHeader(name, value string) error
	// SetResponseTypeBinary makes Response return the raw body bytes.
	SetResponseTypeBinary()

	// Handlers must be set before Send. They may be called on any goroutine.
	OnHeadersReceived(fn func())
	OnLoad(fn func())
	OnError(fn func())
	OnAbort(fn func())

	Send(body []byte) error
	// Abort stops an in-flight request and reports the abort signal.
	// It is a no-op once the request finished.
	Abort()

	// Status is 0 until headers are received or when the request failed.
	Status() int
	StatusText() string
	// AllResponseHeaders returns the CRLF separated header block.
	AllResponseHeaders() string
	Response() []byte
}

// Releaser is implemented by primitives holding host resources.
// Release is called once the request settled.
type Releaser interface {
	Release()
}

// ProtocolReporter is implemented by primitives that know the protocol
// version of the response, e.g. "HTTP/2.0". XMLHttpRequest does not.
type ProtocolReporter interface {
	Protocol() string
}

type Factory interface {
	New() Primitive
}

type FactoryFunc func() Primitive

func (f FactoryFunc) New() Primitive { return f() }
