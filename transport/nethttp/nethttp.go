// Package nethttp implements the request primitive on top of net/http.
package nethttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"browser-http/transport"

	"github.com/pkg/errors"
)

type state int

const (
	stateUnsent state = iota
	stateOpened
	stateSent
	stateDone
)

type Primitive struct {
	client *http.Client

	mu sync.Mutex

	state       state
	method, url string
	header      http.Header
	credentials bool

	onHeaders, onLoad, onError, onAbort func()

	cancel context.CancelFunc
	wg     sync.WaitGroup

	status     int
	statusText string
	proto      string
	rawHeaders string
	body       []byte
}

var (
	_ transport.Primitive = (*Primitive)(nil)
	_ transport.Releaser         = (*Primitive)(nil)
	_ transport.ProtocolReporter = (*Primitive)(nil)
)

// New creates a primitive sending through client.
// The client's cookie jar is only used when credentials are enabled.
func New(client *http.Client) *Primitive {
	if client == nil {
		client = http.DefaultClient
	}
	return &Primitive{
		client: client,
		header: make(http.Header),
	}
}

func NewFactory(client *http.Client) transport.Factory {
	return transport.FactoryFunc(func() transport.Primitive {
		return New(client)
	})
}

func (p *Primitive) Open(method, url string, async bool) error {
	if !async {
		return errors.New("synchronous requests are not supported")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateUnsent {
		return transport.ErrAlreadyOpened
	}

	p.method, p.url = method, url
	p.state = stateOpened

	return nil
}

func (p *Primitive) SetWithCredentials(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credentials = enabled
}

func (p *Primitive) SetRequestHeader(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateOpened {
		return transport.ErrNotOpened
	}
	p.header.Add(name, value)

	return nil
}

// SetResponseTypeBinary is a no-op, native responses are always raw bytes.
func (p *Primitive) SetResponseTypeBinary() {}

func (p *Primitive) OnHeadersReceived(fn func()) { p.setHandler(&p.onHeaders, fn) }
func (p *Primitive) OnLoad(fn func())            { p.setHandler(&p.onLoad, fn) }
func (p *Primitive) OnError(fn func())           { p.setHandler(&p.onError, fn) }
func (p *Primitive) OnAbort(fn func())           { p.setHandler(&p.onAbort, fn) }

func (p *Primitive) setHandler(dst *func(), fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*dst = fn
}

func (p *Primitive) Send(body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateUnsent:
		return transport.ErrNotOpened
	case stateOpened:
	default:
		return transport.ErrAlreadySent
	}

	ctx, cancel := context.WithCancel(context.Background())

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, reqBody)
	if err != nil {
		cancel()
		return errors.Wrap(err, "creating request")
	}
	req.Header = p.header.Clone()

	client := p.client
	if !p.credentials && client.Jar != nil {
		c := *client
		c.Jar = nil
		client = &c
	}

	p.cancel = cancel
	p.state = stateSent

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.exchange(client, req)
	}()

	return nil
}

func (p *Primitive) exchange(client *http.Client, req *http.Request) {
	res, err := client.Do(req)
	if err != nil {
		p.finish(signalError)
		return
	}
	defer res.Body.Close()

	if !p.receiveHeaders(res) {
		return
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		p.finish(signalError)
		return
	}

	p.mu.Lock()
	p.body = body
	p.mu.Unlock()

	p.finish(signalLoad)
}

// receiveHeaders reports false if the request already finished.
func (p *Primitive) receiveHeaders(res *http.Response) bool {
	p.mu.Lock()
	if p.state != stateSent {
		p.mu.Unlock()
		return false
	}

	p.status = res.StatusCode
	p.statusText = strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	p.proto = res.Proto
	p.rawHeaders = headerBlock(res.Header)
	fn := p.onHeaders
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

type signal int

const (
	signalLoad signal = iota
	signalError
)

// finish reports the terminal signal unless the request was aborted meanwhile.
func (p *Primitive) finish(sig signal) {
	p.mu.Lock()
	if p.state != stateSent {
		p.mu.Unlock()
		return
	}

	p.state = stateDone
	var fn func()
	switch sig {
	case signalLoad:
		fn = p.onLoad
	case signalError:
		p.resetResponse()
		fn = p.onError
	}
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (p *Primitive) Abort() {
	p.mu.Lock()
	if p.state != stateSent {
		p.mu.Unlock()
		return
	}

	p.state = stateDone
	p.resetResponse()
	fn, cancel := p.onAbort, p.cancel
	p.mu.Unlock()

	cancel()
	if fn != nil {
		fn()
	}
}

// Release waits for the exchange goroutine to exit.
func (p *Primitive) Release() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Primitive) resetResponse() {
	p.status, p.statusText, p.proto, p.rawHeaders, p.body = 0, "", "", "", nil
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

// Protocol reports the protocol the response was received with, e.g. "HTTP/1.1".
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

	if p.state != stateDone || p.body == nil {
		return nil
	}
	return bytes.Clone(p.body)
}

// headerBlock renders headers the way XMLHttpRequest does:
// lower-case names, sorted, one "name: value" per CRLF terminated line.
func headerBlock(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(strings.ToLower(name))
		sb.WriteString(": ")
		sb.WriteString(strings.Join(h[name], ", "))
		sb.WriteString("\r\n")
	}
	return sb.String()
}
