// Package scripted provides a request primitive driven by test code.
//
// A Primitive records how it was configured and reports whatever signals the
// test emits. Signals are either emitted right away or enqueued and flushed
// later in FIFO order.
package scripted

import (
	"bytes"
	"strings"
	"sync"

	"browser-http/transport"

	"github.com/eapache/queue"
)

type Event int

const (
	HeadersReceived Event = iota
	Load
	Error
	Abort
)

func (e Event) String() string {
	switch e {
	case HeadersReceived:
		return "headers-received"
	case Load:
		return "load"
	case Error:
		return "error"
	case Abort:
		return "abort"
	}
	return "unknown"
}

func (e Event) terminal() bool { return e != HeadersReceived }

// Script runs when a primitive is sent.
type Script func(p *Primitive)

type Primitive struct {
	script Script

	mu sync.Mutex

	opened          bool
	method, url     string
	async           bool
	withCredentials bool
	binary          bool
	headers         [][2]string
	body            []byte

	sent     chan struct{}
	isSent   bool
	finished bool
	aborts   int
	released bool

	handlers map[Event]func()
	pending  *queue.Queue

	status     int
	statusText string
	proto      string
	rawHeaders string
	response   []byte
}

var (
	_ transport.Primitive = (*Primitive)(nil)
	_ transport.Releaser         = (*Primitive)(nil)
	_ transport.ProtocolReporter = (*Primitive)(nil)
)

func New(script Script) *Primitive {
	return &Primitive{
		script:   script,
		sent:     make(chan struct{}),
		handlers: make(map[Event]func()),
		pending:  queue.New(),
	}
}

func (p *Primitive) Open(method, url string, async bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opened {
		return transport.ErrAlreadyOpened
	}
	p.opened = true
	p.method, p.url, p.async = method, url, async

	return nil
}

func (p *Primitive) SetWithCredentials(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.withCredentials = enabled
}

func (p *Primitive) SetRequestHeader(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return transport.ErrNotOpened
	}
	p.headers = append(p.headers, [2]string{name, value})

	return nil
}

func (p *Primitive) SetResponseTypeBinary() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.binary = true
}

func (p *Primitive) OnHeadersReceived(fn func()) { p.on(HeadersReceived, fn) }
func (p *Primitive) OnLoad(fn func())            { p.on(Load, fn) }
func (p *Primitive) OnError(fn func())           { p.on(Error, fn) }
func (p *Primitive) OnAbort(fn func())           { p.on(Abort, fn) }

func (p *Primitive) on(ev Event, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[ev] = fn
}

// Send records the body and runs the script on the calling goroutine.
func (p *Primitive) Send(body []byte) error {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return transport.ErrNotOpened
	}
	if p.isSent {
		p.mu.Unlock()
		return transport.ErrAlreadySent
	}
	p.isSent = true
	p.body = bytes.Clone(body)
	close(p.sent)
	script := p.script
	p.mu.Unlock()

	if script != nil {
		script(p)
	}
	return nil
}

// Abort reports the abort signal synchronously unless the request finished.
func (p *Primitive) Abort() {
	p.mu.Lock()
	p.aborts++
	if !p.isSent || p.finished {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.Emit(Abort)
}

func (p *Primitive) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// Respond sets what the response accessors report.
func (p *Primitive) Respond(status int, statusText string, headers []string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = status
	p.statusText = statusText
	p.rawHeaders = ""
	if len(headers) > 0 {
		p.rawHeaders = strings.Join(headers, "\r\n") + "\r\n"
	}
	p.response = bytes.Clone(body)
}

// SetProtocol sets what Protocol reports. Empty by default.
func (p *Primitive) SetProtocol(proto string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proto = proto
}

// Emit reports ev to its handler right away.
// Terminal signals are reported even after another one, so tests can
// exercise misbehaving hosts.
func (p *Primitive) Emit(ev Event) {
	p.mu.Lock()
	if ev.terminal() {
		p.finished = true
	}
	fn := p.handlers[ev]
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Enqueue defers ev until Flush.
func (p *Primitive) Enqueue(events ...Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range events {
		p.pending.Add(ev)
	}
}

// Flush emits every enqueued event in order and reports how many were emitted.
func (p *Primitive) Flush() int {
	n := 0
	for {
		p.mu.Lock()
		if p.pending.Length() == 0 {
			p.mu.Unlock()
			return n
		}
		ev := p.pending.Remove().(Event)
		p.mu.Unlock()

		p.Emit(ev)
		n++
	}
}

// Succeed responds and reports headers then load.
func (p *Primitive) Succeed(status int, statusText string, headers []string, body []byte) {
	p.Respond(status, statusText, headers, body)
	p.Emit(HeadersReceived)
	p.Emit(Load)
}

// Sent is closed once Send was called.
func (p *Primitive) Sent() <-chan struct{} { return p.sent }

func (p *Primitive) Method() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.method
}

func (p *Primitive) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Primitive) Async() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.async
}

func (p *Primitive) WithCredentials() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.withCredentials
}

func (p *Primitive) Binary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.binary
}

func (p *Primitive) RequestHeaders() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]string(nil), p.headers...)
}

func (p *Primitive) Body() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body
}

// Aborts counts Abort calls, including no-op ones.
func (p *Primitive) Aborts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborts
}

func (p *Primitive) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Primitive) Status() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Primitive) StatusText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusText
}

func (p *Primitive) Protocol() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proto
}

func (p *Primitive) AllResponseHeaders() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rawHeaders
}

func (p *Primitive) Response() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.response)
}
