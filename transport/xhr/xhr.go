//go:build js && wasm

// Package xhr implements the request primitive with the browser's XMLHttpRequest.
package xhr

import (
	"syscall/js"

	"browser-http/transport"

	"github.com/pkg/errors"
)

// readyState values.
// Reference: https://xhr.spec.whatwg.org/#states
const (
	readyStateUnsent          = 0
	readyStateHeadersReceived = 2
)

type listener struct {
	event string
	f     js.Func
}

type Primitive struct {
	v         js.Value
	listeners []listener
}

var (
	_ transport.Primitive = (*Primitive)(nil)
	_ transport.Releaser  = (*Primitive)(nil)
)

func New() *Primitive {
	return &Primitive{
		v: js.Global().Get("XMLHttpRequest").New(),
	}
}

func NewFactory() transport.Factory {
	return transport.FactoryFunc(func() transport.Primitive {
		return New()
	})
}

// call invokes a method, turning a thrown exception into an error.
func (p *Primitive) call(method string, args ...any) (ret js.Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if jsErr, ok := r.(js.Error); ok {
			err = errors.Wrapf(jsErr, "calling %s", method)
			return
		}
		panic(r)
	}()

	return p.v.Call(method, args...), nil
}

func (p *Primitive) Open(method, url string, async bool) error {
	if p.v.Get("readyState").Int() != readyStateUnsent {
		return transport.ErrAlreadyOpened
	}

	_, err := p.call("open", method, url, async)
	return err
}

func (p *Primitive) SetWithCredentials(enabled bool) {
	p.v.Set("withCredentials", enabled)
}

func (p *Primitive) SetRequestHeader(name, value string) error {
	if p.v.Get("readyState").Int() == readyStateUnsent {
		return transport.ErrNotOpened
	}

	_, err := p.call("setRequestHeader", name, value)
	return err
}

func (p *Primitive) SetResponseTypeBinary() {
	p.v.Set("responseType", "arraybuffer")
}

func (p *Primitive) OnHeadersReceived(fn func()) {
	p.listen("readystatechange", func() {
		if p.v.Get("readyState").Int() == readyStateHeadersReceived {
			fn()
		}
	})
}

func (p *Primitive) OnLoad(fn func()) { p.listen("load", fn) }

func (p *Primitive) OnError(fn func()) {
	p.listen("error", fn)
	p.listen("timeout", fn)
}

func (p *Primitive) OnAbort(fn func()) { p.listen("abort", fn) }

func (p *Primitive) listen(event string, fn func()) {
	f := js.FuncOf(func(js.Value, []js.Value) any {
		fn()
		return nil
	})
	p.listeners = append(p.listeners, listener{event: event, f: f})
	p.v.Call("addEventListener", event, f)
}

func (p *Primitive) Send(body []byte) error {
	if p.v.Get("readyState").Int() == readyStateUnsent {
		return transport.ErrNotOpened
	}

	if body == nil {
		_, err := p.call("send")
		return err
	}

	arr := js.Global().Get("Uint8Array").New(len(body))
	js.CopyBytesToJS(arr, body)

	_, err := p.call("send", arr)
	return err
}

func (p *Primitive) Abort() {
	p.v.Call("abort")
}

func (p *Primitive) Status() int { return p.v.Get("status").Int() }

func (p *Primitive) StatusText() string { return p.v.Get("statusText").String() }

func (p *Primitive) AllResponseHeaders() string {
	return p.v.Call("getAllResponseHeaders").String()
}

func (p *Primitive) Response() []byte {
	res := p.v.Get("response")
	if res.IsNull() || res.IsUndefined() {
		return nil
	}

	arr := js.Global().Get("Uint8Array").New(res)
	b := make([]byte, arr.Get("length").Int())
	js.CopyBytesToGo(b, arr)

	return b
}

// Release detaches and frees the callbacks registered on the request object.
func (p *Primitive) Release() {
	for _, l := range p.listeners {
		p.v.Call("removeEventListener", l.event, l.f)
		l.f.Release()
	}
	p.listeners = nil
}
